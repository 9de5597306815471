package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/jobharvest/cache"
	"github.com/use-agent/jobharvest/config"
	"github.com/use-agent/jobharvest/models"
	"github.com/use-agent/jobharvest/runner"
)

// Harvester is the part of runner.Runner the handlers use.
type Harvester interface {
	Run(ctx context.Context, req runner.Request) ([]*runner.Outcome, error)
	Status() models.SessionInfo
}

// Harvest returns a handler for POST /api/v1/harvest.
//
// Flow:
//  1. Bind and validate the request, apply defaults.
//  2. Serve from cache when max_age allows.
//  3. Run the keyword (waits for any run already in progress).
//  4. Map a failed run to its HTTP status, otherwise cache and return 200.
func Harvest(h Harvester, site config.SiteConfig, hcfg config.HarvestConfig, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		var req models.HarvestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.HarvestResponse{
				Success: false,
				Error:   &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: err.Error()},
			})
			return
		}
		req.Keyword = strings.TrimSpace(req.Keyword)
		if req.Keyword == "" {
			c.JSON(http.StatusBadRequest, models.HarvestResponse{
				Success: false,
				Error:   &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: "keyword is blank"},
			})
			return
		}
		req.Defaults(site.Country, hcfg.MaxScrollRounds)

		cacheKey := cache.Key(req.Keyword, req.Country, req.ContainerXPath, req.MaxScrolls, req.AI)
		if cc != nil && req.MaxAge > 0 {
			if cached, hit := cc.Get(cacheKey, req.MaxAge); hit {
				resp := *cached
				resp.CacheStatus = "hit"
				resp.Timing = models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds()}
				c.JSON(http.StatusOK, resp)
				return
			}
		}

		outcomes, err := h.Run(c.Request.Context(), runner.Request{
			Keywords:       []string{req.Keyword},
			Country:        req.Country,
			MaxScrolls:     req.MaxScrolls,
			ContainerXPath: req.ContainerXPath,
			AI:             req.AI,
		})
		if err != nil || len(outcomes) == 0 {
			if err == nil {
				err = models.NewHarvestError(models.ErrCodeInternal, "run produced no outcome", nil)
			}
			respondError(c, err, nil, models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds()})
			return
		}

		out := outcomes[0]
		timing := models.TimingInfo{
			TotalMs:   time.Since(totalStart).Milliseconds(),
			HarvestMs: out.Harvest.Milliseconds(),
			EnrichMs:  out.Enrich.Milliseconds(),
		}
		if out.Report.Error != nil {
			c.JSON(statusForCode(out.Report.Error.Code), models.HarvestResponse{
				Success: false,
				Report:  out.Report,
				Error:   out.Report.Error,
				Timing:  timing,
			})
			return
		}

		resp := &models.HarvestResponse{Success: true, Report: out.Report, Timing: timing}
		if cc != nil && req.MaxAge > 0 {
			resp.CacheStatus = "miss"
			cc.Set(cacheKey, resp)
		}
		c.JSON(http.StatusOK, resp)
	}
}

// respondError writes err as a structured error response.
func respondError(c *gin.Context, err error, report *models.RunReport, timing models.TimingInfo) {
	var he *models.HarvestError
	switch {
	case errors.As(err, &he):
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		he = models.NewHarvestError(models.ErrCodeTimeout, err.Error(), err)
	default:
		he = models.NewHarvestError(models.ErrCodeInternal, err.Error(), err)
	}

	c.JSON(statusForCode(he.Code), models.HarvestResponse{
		Success: false,
		Report:  report,
		Error:   he.ToDetail(),
		Timing:  timing,
	})
}

// statusForCode translates error codes to HTTP status codes.
func statusForCode(code string) int {
	switch code {
	case models.ErrCodeContainerNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation, models.ErrCodeSession:
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
