package mirror

import (
	"fmt"
	"strconv"

	"github.com/valyala/fasttemplate"
)

const (
	// DefaultTitleTemplate renders "[MIRROR]<prefix><upstream title>".
	DefaultTitleTemplate = "[MIRROR]{{prefix}}{{title}}"

	// DefaultBodyTemplate places the banner, the body prefix and the upstream
	// body in that order.
	DefaultBodyTemplate = "{{banner}}\n\n{{prefix}}{{body}}"

	// Banner opens every mirror pull request body.
	Banner = "> :arrows_counterclockwise: This pull request was mirrored automatically from {{upstream}}#{{number}}."

	templateStart = "{{"
	templateEnd   = "}}"
)

// PRTemplate renders mirror pull request titles and bodies.
//
// Templates use {{tag}} placeholders: prefix, title, body, banner, number
// and upstream. Unknown tags are left in place.
type PRTemplate struct {
	title       *fasttemplate.Template
	body        *fasttemplate.Template
	banner      *fasttemplate.Template
	titlePrefix string
	bodyPrefix  string
}

// NewPRTemplate compiles the title and body templates. Empty templates
// select the defaults.
func NewPRTemplate(titleTemplate, bodyTemplate, titlePrefix, bodyPrefix string) (*PRTemplate, error) {
	if titleTemplate == "" {
		titleTemplate = DefaultTitleTemplate
	}
	if bodyTemplate == "" {
		bodyTemplate = DefaultBodyTemplate
	}

	title, err := fasttemplate.NewTemplate(titleTemplate, templateStart, templateEnd)
	if err != nil {
		return nil, &ConfigurationError{Field: "title_template", Reason: err.Error()}
	}
	body, err := fasttemplate.NewTemplate(bodyTemplate, templateStart, templateEnd)
	if err != nil {
		return nil, &ConfigurationError{Field: "body_template", Reason: err.Error()}
	}
	banner, err := fasttemplate.NewTemplate(Banner, templateStart, templateEnd)
	if err != nil {
		return nil, fmt.Errorf("invalid banner template: %w", err)
	}

	return &PRTemplate{
		title:       title,
		body:        body,
		banner:      banner,
		titlePrefix: titlePrefix,
		bodyPrefix:  bodyPrefix,
	}, nil
}

// Render returns the title and body for the mirror of pr.
func (t *PRTemplate) Render(upstream *Repository, pr *PullRequest) (title, body string) {
	vars := map[string]interface{}{
		"number":   strconv.Itoa(pr.Number),
		"upstream": upstream.FullName(),
		"title":    pr.Title,
	}
	vars["banner"] = t.banner.ExecuteStringStd(vars)

	vars["prefix"] = t.titlePrefix
	title = t.title.ExecuteStringStd(vars)

	prefix := t.bodyPrefix
	if prefix != "" {
		prefix += "\n\n"
	}
	vars["prefix"] = prefix
	vars["body"] = pr.Body
	body = t.body.ExecuteStringStd(vars)

	return title, body
}
