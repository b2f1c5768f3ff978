package service

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"crmtriage/internal/models"
)

var placeholderPattern = regexp.MustCompile(`\{[a-zA-Z_]+\}`)

// TemplateData holds the values a response template can reference
type TemplateData struct {
	CustomerName string
	CampaignName string
	BrandID      string
	Phone        string
	Email        string
}

// TemplateService renders canned response texts. Placeholders such as
// {customer_name} are replaced with values of the message being answered.
type TemplateService struct{}

// NewTemplateService creates a new template service
func NewTemplateService() *TemplateService {
	return &TemplateService{}
}

// Fields lists the supported placeholders
func (s *TemplateService) Fields() []string {
	fields := make([]string, 0, len(templateFields))
	for f := range templateFields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

var templateFields = map[string]func(TemplateData) string{
	"{customer_name}": func(d TemplateData) string { return d.CustomerName },
	"{campaign_name}": func(d TemplateData) string { return d.CampaignName },
	"{brand}":         func(d TemplateData) string { return d.BrandID },
	"{phone}":         func(d TemplateData) string { return d.Phone },
	"{email}":         func(d TemplateData) string { return d.Email },
}

// Render replaces known placeholders. Missing values render as empty
// strings and unknown placeholders are left as-is.
func (s *TemplateService) Render(template string, data TemplateData) (string, error) {
	if strings.TrimSpace(template) == "" {
		return "", fmt.Errorf("template cannot be empty")
	}

	return placeholderPattern.ReplaceAllStringFunc(template, func(p string) string {
		if value, ok := templateFields[p]; ok {
			return value(data)
		}
		return p
	}), nil
}

// ValidateTemplate checks that braces are balanced and every placeholder is
// known
func (s *TemplateService) ValidateTemplate(template string) error {
	if strings.TrimSpace(template) == "" {
		return fmt.Errorf("template cannot be empty")
	}

	openCount := strings.Count(template, "{")
	closeCount := strings.Count(template, "}")
	if openCount != closeCount {
		return fmt.Errorf("template has unbalanced braces: %d open, %d close", openCount, closeCount)
	}

	var unknown []string
	for _, p := range s.GetPlaceholders(template) {
		if _, ok := templateFields[p]; !ok {
			unknown = append(unknown, p)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("unknown placeholders: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// GetPlaceholders extracts all placeholders from a template
func (s *TemplateService) GetPlaceholders(template string) []string {
	return placeholderPattern.FindAllString(template, -1)
}

// DataFor builds template data for a message view, adding contact details
// when the customer is known
func DataFor(view models.MessageView, customer *models.Customer) TemplateData {
	data := TemplateData{
		CustomerName: view.CustomerName,
		CampaignName: view.CampaignName,
		BrandID:      view.BrandID,
	}
	if customer != nil {
		if data.CustomerName == "" {
			data.CustomerName = customer.DisplayName()
		}
		data.Phone = customer.Phone
		data.Email = customer.Email
	}
	return data
}
