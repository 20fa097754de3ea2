package http

import (
	"strconv"

	"prep_server/core/port/in"
	"prep_server/core/port/out"
	"prep_server/pkg/apperr"
	"prep_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const maxReportLimit = 100

// DatasetHandler exposes prepared datasets for inspection.
type DatasetHandler struct {
	datasets     in.DatasetService
	reports      out.ReportRepository
	prepareGuard fiber.Handler
}

// NewDatasetHandler creates a handler. reports may be nil when no report store is configured.
func NewDatasetHandler(datasets in.DatasetService, reports out.ReportRepository) *DatasetHandler {
	return &DatasetHandler{
		datasets: datasets,
		reports:  reports,
	}
}

// WithPrepareGuard runs guard (typically a rate limit) before every rebuild.
func (h *DatasetHandler) WithPrepareGuard(guard fiber.Handler) *DatasetHandler {
	h.prepareGuard = guard
	return h
}

// Register registers dataset routes.
func (h *DatasetHandler) Register(router fiber.Router) {
	datasets := router.Group("/datasets")
	datasets.Get("/", h.ListSplits)
	datasets.Get("/:split", h.Describe)
	if h.prepareGuard != nil {
		datasets.Post("/:split/prepare", h.prepareGuard, h.Prepare)
	} else {
		datasets.Post("/:split/prepare", h.Prepare)
	}
	datasets.Get("/:split/items/:index", h.GetItem)
	datasets.Delete("/:split/cache", h.Invalidate)

	router.Get("/reports", h.ListReports)
}

// ListSplits returns the split names available on disk.
func (h *DatasetHandler) ListSplits(c *fiber.Ctx) error {
	splits, err := h.datasets.Splits(c.UserContext())
	if err != nil {
		return err
	}
	return response.OKWithMeta(c, splits, &response.Meta{Total: len(splits)})
}

// Describe returns the length, class distribution and last report of a split.
func (h *DatasetHandler) Describe(c *fiber.Ctx) error {
	info, err := h.datasets.Describe(c.UserContext(), c.Params("split"))
	if err != nil {
		return err
	}
	return response.OK(c, info)
}

// Prepare rebuilds a split.
func (h *DatasetHandler) Prepare(c *fiber.Ctx) error {
	report, err := h.datasets.Prepare(c.UserContext(), c.Params("split"))
	if err != nil {
		return err
	}
	return response.OK(c, report)
}

// Invalidate drops the cached features of a split.
func (h *DatasetHandler) Invalidate(c *fiber.Ctx) error {
	if err := h.datasets.Invalidate(c.UserContext(), c.Params("split")); err != nil {
		return err
	}
	return response.OK(c, fiber.Map{"split": c.Params("split"), "invalidated": true})
}

// GetItem returns one encoded item.
func (h *DatasetHandler) GetItem(c *fiber.Ctx) error {
	index, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return apperr.InvalidArgument("index", "must be an integer")
	}

	item, err := h.datasets.Item(c.UserContext(), c.Params("split"), index)
	if err != nil {
		return err
	}
	return response.OK(c, item)
}

// ListReports returns the most recent preparation reports.
func (h *DatasetHandler) ListReports(c *fiber.Ctx) error {
	if h.reports == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "report store not configured")
	}

	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > maxReportLimit {
		return apperr.InvalidArgument("limit", "must be between 1 and 100")
	}

	reports, err := h.reports.List(c.UserContext(), int64(limit))
	if err != nil {
		return err
	}
	return response.OKWithMeta(c, reports, &response.Meta{Total: len(reports)})
}
