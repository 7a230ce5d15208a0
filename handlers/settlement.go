package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/greg-czaplicki/parlay-picker-sub005/metrics"
	"github.com/greg-czaplicki/parlay-picker-sub005/models"
	"github.com/greg-czaplicki/parlay-picker-sub005/services/common"
	"github.com/greg-czaplicki/parlay-picker-sub005/services/settleService"
)

// SetupSettlementRoutes wires the manual settlement triggers, the run-history
// API, and the operational endpoints.
func SetupSettlementRoutes(app *fiber.App, db *gorm.DB, settler *settleService.Service, m *metrics.SettlementMetrics) {
	// Manual sweep over every pending leg, all tournaments.
	app.Post("/api/settle/rounds", func(c *fiber.Ctx) error {
		started := time.Now()
		report, err := settler.SettlePendingRounds(c.Context())
		if err != nil {
			m.RecordRun("manual", "failed", time.Since(started).Seconds())
			common.SendError(db, "http:settle", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		m.RecordRun("manual", "ok", report.FinishedAt.Sub(report.StartedAt).Seconds())
		if err := settleService.PersistRun(db, "manual", report); err != nil {
			common.SendError(db, "http:settle", err)
		}
		return c.JSON(report)
	})

	// Legacy trigger: sweep a single tournament end to end. Kept for operators
	// and older integrations that fire on tournament completion.
	app.Post("/api/tournaments/:eventId/settle", func(c *fiber.Ctx) error {
		eventID, err := c.ParamsInt("eventId")
		if err != nil || eventID <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "eventId must be a positive integer",
			})
		}

		started := time.Now()
		report, err := settler.SettleTournament(c.Context(), eventID)
		if err != nil {
			m.RecordRun("manual", "failed", time.Since(started).Seconds())
			common.SendError(db, "http:settle", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		m.RecordRun("manual", "ok", report.FinishedAt.Sub(report.StartedAt).Seconds())
		if err := settleService.PersistRun(db, "manual", report); err != nil {
			common.SendError(db, "http:settle", err)
		}
		return c.JSON(report)
	})

	app.Get("/api/settlement/runs", func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 20)
		if limit < 1 {
			limit = 1
		}
		if limit > 100 {
			limit = 100
		}

		var runs []models.SettlementRun
		if err := db.Order("id DESC").Limit(limit).Find(&runs).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.JSON(runs)
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Context())
		}
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "unhealthy",
				"error":  err.Error(),
			})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})))
}
