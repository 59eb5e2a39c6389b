package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/school-docs-api/internal/calendar"
	appErrors "github.com/noah-isme/school-docs-api/pkg/errors"
)

// HolidayResponse lists a year's non-business dates for schedule pickers.
type HolidayResponse struct {
	Year     int      `json:"year"`
	Holidays []string `json:"holidays"`
}

// NextBusinessDayResponse carries the minimum selectable pickup date.
type NextBusinessDayResponse struct {
	From            string `json:"from"`
	NextBusinessDay string `json:"next_business_day"`
}

// CalendarService serves the holiday calendar to schedule pickers, with a
// redis read-through cache in front of the pure engine.
type CalendarService struct {
	engine   *calendar.Engine
	cache    *redis.Client
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewCalendarService constructs the service. cache may be nil; lookups then
// always hit the engine.
func NewCalendarService(engine *calendar.Engine, cache *redis.Client, cacheTTL time.Duration, logger *zap.Logger) *CalendarService {
	if engine == nil {
		engine = calendar.NewEngine()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 12 * time.Hour
	}
	return &CalendarService{engine: engine, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// Holidays returns the sorted holiday dates for a year.
func (s *CalendarService) Holidays(ctx context.Context, year int) (*HolidayResponse, error) {
	if year < 1900 || year > 2199 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "year out of range")
	}

	cacheKey := fmt.Sprintf("calendar:holidays:%d", year)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Bytes(); err == nil {
			var resp HolidayResponse
			if err := json.Unmarshal(cached, &resp); err == nil {
				return &resp, nil
			}
		}
	}

	set := s.engine.HolidaySetFor(year)
	dates := make([]string, 0, len(set))
	for d := range set {
		dates = append(dates, d.Format("2006-01-02"))
	}
	sort.Strings(dates)
	resp := &HolidayResponse{Year: year, Holidays: dates}

	if s.cache != nil {
		if raw, err := json.Marshal(resp); err == nil {
			if err := s.cache.Set(ctx, cacheKey, raw, s.cacheTTL).Err(); err != nil {
				s.logger.Warn("holiday cache write failed", zap.Int("year", year), zap.Error(err))
			}
		}
	}
	return resp, nil
}

// NextBusinessDay returns the first selectable pickup date strictly after
// from (defaulting to today).
func (s *CalendarService) NextBusinessDay(_ context.Context, from time.Time) *NextBusinessDayResponse {
	if from.IsZero() {
		from = time.Now().UTC()
	}
	next := s.engine.NextBusinessDay(from)
	return &NextBusinessDayResponse{
		From:            calendar.DateOnly(from).Format("2006-01-02"),
		NextBusinessDay: next.Format("2006-01-02"),
	}
}
