package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Checker-Finance/sme-deals/internal/runner"
)

// RunCoordinator is the slice of runner.Coordinator the handlers need.
type RunCoordinator interface {
	Run(ctx context.Context) (*runner.Result, error)
	Last() (*runner.Result, error)
	Running() bool
}

// Handler serves the daemon-mode control endpoints.
type Handler struct {
	logger *zap.Logger
	coord  RunCoordinator
}

func NewHandler(logger *zap.Logger, coord RunCoordinator) *Handler {
	return &Handler{logger: logger, coord: coord}
}

// Healthz reports process liveness.
func (h *Handler) Healthz(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
}

// Status returns the most recent run summary.
func (h *Handler) Status(c *fiber.Ctx) error {
	last, lastErr := h.coord.Last()
	if last == nil && lastErr == nil {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"running":  h.coord.Running(),
			"last_run": nil,
		})
	}

	body := fiber.Map{
		"running": h.coord.Running(),
	}
	if last != nil {
		body["last_run"] = runSummary(last)
	}
	if lastErr != nil {
		body["last_error"] = lastErr.Error()
	}
	return c.Status(fiber.StatusOK).JSON(body)
}

// TriggerRun starts a scan immediately. A run already in flight yields 409.
func (h *Handler) TriggerRun(c *fiber.Ctx) error {
	h.logger.Info("api.run_triggered")

	result, err := h.coord.Run(c.Context())
	if err != nil {
		if errors.Is(err, runner.ErrLocked) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "a run is already in progress"})
		}
		h.logger.Error("api.run_failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusOK).JSON(runSummary(result))
}

func runSummary(r *runner.Result) fiber.Map {
	return fiber.Map{
		"run_id":       r.RunID.String(),
		"from":         r.From.Format("2006-01-02"),
		"to":           r.To.Format("2006-01-02"),
		"fetched":      r.Fetched,
		"sme":          r.SME,
		"new":          r.New,
		"delivered":    r.Delivered,
		"sources_down": r.SourcesDown,
		"duration_ms":  r.Duration.Milliseconds(),
	}
}
