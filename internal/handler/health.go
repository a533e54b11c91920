package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/restaurant-service/internal/store"
)

// Health answers load balancer probes. With a store attached it also lists
// the mesas collection, so a broken database turns the probe red.
type Health struct {
    Store store.Store
}

func (h Health) Check(c echo.Context) error {
    if h.Store != nil {
        ctx, cancel := withTimeout(c)
        defer cancel()
        if _, err := h.Store.List(ctx, store.Mesas); err != nil {
            c.Logger().Errorf("health: %v", err)
            return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "degraded"})
        }
    }
    return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
