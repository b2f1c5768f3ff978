package handler

import (
	"net/http"
	"strconv"
	"strings"

	"crmtriage/internal/models"
)

// Query parameters accepted by list endpoints
const (
	paramSearch   = "search"
	paramCampaign = "campaign"
	paramBrand    = "brand"
	paramDate     = "date"
	paramTags     = "tags"
	paramTagMode  = "tagMode"
	paramStatus   = "status"
	paramSegment  = "segment"
	paramPage     = "page"
	paramPerPage  = "per_page"
)

// ParseCriteria reads FilterCriteria from query parameters. tags may be
// repeated or comma-separated.
func ParseCriteria(r *http.Request) models.FilterCriteria {
	q := r.URL.Query()

	var tags []string
	for _, v := range q[paramTags] {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}

	return models.FilterCriteria{
		SearchText:      q.Get(paramSearch),
		CampaignID:      q.Get(paramCampaign),
		BrandID:         q.Get(paramBrand),
		DateRangePreset: models.DatePreset(q.Get(paramDate)),
		TagSelection:    tags,
		TagMode:         models.TagMode(strings.ToUpper(q.Get(paramTagMode))),
		StatusSelection: q.Get(paramStatus),
		Segment:         q.Get(paramSegment),
	}
}

// PaginationInfo describes one page of a list response
type PaginationInfo struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalCount int `json:"totalCount"`
	TotalPages int `json:"totalPages"`
}

// parsePage reads page and per_page. Paging is off when neither is given.
func parsePage(r *http.Request) (page, perPage int, paged bool) {
	q := r.URL.Query()
	if q.Get(paramPage) == "" && q.Get(paramPerPage) == "" {
		return 0, 0, false
	}

	page = 1
	if p, err := strconv.Atoi(q.Get(paramPage)); err == nil && p > 0 {
		page = p
	}
	perPage = 20
	if pp, err := strconv.Atoi(q.Get(paramPerPage)); err == nil && pp > 0 {
		perPage = pp
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage, true
}

// paginate slices items to the requested page
func paginate[T any](items []T, page, perPage int) ([]T, *PaginationInfo) {
	total := len(items)
	info := &PaginationInfo{
		Page:       page,
		PageSize:   perPage,
		TotalCount: total,
		TotalPages: (total + perPage - 1) / perPage,
	}

	start := (page - 1) * perPage
	if start >= total {
		return []T{}, info
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return items[start:end], info
}
