package processor

import (
	"fmt"

	"docforge/internal/apperror"
)

type RenderOptions struct {
	RowsPerDoc       int
	Settings         DocSettings
	RemoveEmptyPages bool
}

// Document is one rendered batch.
type Document struct {
	Data         []byte
	Layout       DocumentLayout
	PagesRemoved int
}

// Render fills the template with one batch of resolved rows. Each row maps
// placeholder names to replacement text; a missing name renders as "".
//
// With one row per document every occurrence of a tag gets that row's value.
// With more, occurrence k of a tag takes row k of the batch and occurrences
// beyond the batch size are blanked.
func (t *Template) Render(rows []map[string]string, opts RenderOptions) (*Document, error) {
	if err := opts.Settings.Validate(); err != nil {
		return nil, apperror.Wrap(apperror.KindBadRequest, "Invalid document settings: "+err.Error(), err)
	}

	dp, err := NewDocxProcessor(t.data)
	if err != nil {
		return nil, fmt.Errorf("failed to open template: %w", err)
	}

	perDoc := max(1, opts.RowsPerDoc)
	dp.fill(t.pattern, func(name string, occurrence int) (string, bool) {
		switch {
		case len(rows) == 0:
			return "", true
		case perDoc == 1:
			return rows[0][name], true
		case occurrence < len(rows):
			return rows[occurrence][name], true
		default:
			return "", true
		}
	})

	content, _ := dp.Part(documentPart)
	dp.SetPart(documentPart, applyPageSize(content, opts.Settings))
	dp.applyFont(opts.Settings.FontName, opts.Settings.FontSize)

	removed := 0
	if opts.RemoveEmptyPages {
		removed = dp.RemoveEmptyPages()
	}

	data, err := dp.Bytes()
	if err != nil {
		return nil, err
	}
	content, _ = dp.Part(documentPart)
	return &Document{
		Data:         data,
		Layout:       parseDocumentLayout(content),
		PagesRemoved: removed,
	}, nil
}
