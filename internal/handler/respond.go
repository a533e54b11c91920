package handler

import (
    "context"
    "errors"
    "net/http"
    "reflect"
    "strings"
    "time"

    "github.com/go-playground/validator/v10"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/restaurant-service/internal/repository"
    "github.com/iliyamo/restaurant-service/internal/service"
    "github.com/iliyamo/restaurant-service/internal/store"
)

// requestTimeout bounds every store round trip made by a handler.
const requestTimeout = 5 * time.Second

func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
    return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// respondError maps service errors onto status codes. Store failures are
// logged and shown as a generic retry message.
func respondError(c echo.Context, err error) error {
    var (
        ve *service.ValidationError
        nf *service.NotFoundError
    )
    switch {
    case errors.As(err, &ve):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": ve.Msg, "campo": ve.Field})
    case errors.As(err, &nf):
        return c.JSON(http.StatusNotFound, echo.Map{"error": nf.Error()})
    case errors.Is(err, store.ErrNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "Registro no encontrado."})
    case errors.Is(err, repository.ErrEmailExists):
        return c.JSON(http.StatusConflict, echo.Map{"error": "El correo ya está registrado."})
    case errors.Is(err, service.ErrInvalidCode):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    case errors.Is(err, service.ErrExpiredCode):
        return c.JSON(http.StatusGone, echo.Map{"error": err.Error()})
    case errors.Is(err, service.ErrAlreadyOccupied), errors.Is(err, service.ErrInvalidTransition):
        return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
    }
    c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Error interno, intente de nuevo."})
}

// confirmed guards destructive endpoints: the caller must pass
// ?confirm=true.
func confirmed(c echo.Context) bool {
    return strings.EqualFold(c.QueryParam("confirm"), "true")
}

func needConfirm(c echo.Context) error {
    return c.JSON(http.StatusBadRequest, echo.Map{"error": "Confirme la operación con ?confirm=true."})
}

// Validator adapts validator/v10 to echo.Validator.
type Validator struct {
    v *validator.Validate
}

// NewValidator reports fields by their json names.
func NewValidator() *Validator {
    v := validator.New(validator.WithRequiredStructEnabled())
    v.RegisterTagNameFunc(func(fld reflect.StructField) string {
        name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
        if name == "-" {
            return ""
        }
        return name
    })
    return &Validator{v: v}
}

func (cv *Validator) Validate(i any) error { return cv.v.Struct(i) }

// bindValid binds and validates req. Failures come back as a
// ValidationError naming the first offending field.
func bindValid(c echo.Context, req any) error {
    if err := c.Bind(req); err != nil {
        return &service.ValidationError{Field: "body", Msg: "Cuerpo de la solicitud inválido."}
    }
    err := c.Validate(req)
    if err == nil {
        return nil
    }
    var verrs validator.ValidationErrors
    if errors.As(err, &verrs) && len(verrs) > 0 {
        f := verrs[0]
        field := f.Field()
        return &service.ValidationError{Field: field, Msg: fieldMessage(field, f.Tag())}
    }
    return &service.ValidationError{Field: "body", Msg: err.Error()}
}

func fieldMessage(field, tag string) string {
    switch tag {
    case "required":
        return "El campo " + field + " es obligatorio."
    case "email":
        return "El campo " + field + " debe ser un correo válido."
    case "min", "gte", "gt":
        return "El campo " + field + " es demasiado pequeño."
    case "max", "lte":
        return "El campo " + field + " es demasiado grande."
    case "oneof":
        return "El campo " + field + " tiene un valor no permitido."
    }
    return "El campo " + field + " es inválido."
}
