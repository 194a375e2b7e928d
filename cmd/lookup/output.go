package lookup

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	booklookup "github.com/lepinkainen/buyback/internal/lookup"
	"gopkg.in/yaml.v3"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

type textStyles struct {
	title  lipgloss.Style
	label  lipgloss.Style
	value  lipgloss.Style
	gain   lipgloss.Style
	loss   lipgloss.Style
	muted  lipgloss.Style
	errMsg lipgloss.Style
}

func newTextStyles(w io.Writer) textStyles {
	r := lipgloss.NewRenderer(w)
	return textStyles{
		title:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("254")),
		label:  r.NewStyle().Width(12).Foreground(lipgloss.Color("110")),
		value:  r.NewStyle().Foreground(lipgloss.Color("252")),
		gain:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		loss:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		muted:  r.NewStyle().Foreground(lipgloss.Color("247")).Faint(true),
		errMsg: r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
	}
}

// Render writes resp to w in the requested format.
func Render(w io.Writer, resp booklookup.Response, format string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(resp)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()
	case FormatText, "":
		_, err := io.WriteString(w, renderText(w, resp)+"\n")
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func renderText(w io.Writer, resp booklookup.Response) string {
	s := newTextStyles(w)

	switch r := resp.(type) {
	case *booklookup.ErrorResponse:
		line := s.errMsg.Render(r.Message)
		if r.Title != "" {
			line += " " + s.muted.Render("("+r.Title+")")
		}
		return line

	case *booklookup.SuccessResponse:
		row := func(label, value string) string {
			return s.label.Render(label) + value
		}

		price := s.muted.Render("n/a")
		if r.Buyback.Price != nil {
			price = s.value.Render(booklookup.FormatBuyPrice(*r.Buyback.Price))
		}

		profit := s.muted.Render("n/a")
		if r.Profit != nil {
			style := s.gain
			if strings.HasPrefix(*r.Profit, "-") {
				style = s.loss
			}
			profit = style.Render(*r.Profit)
		}

		return lipgloss.JoinVertical(lipgloss.Left,
			s.title.Render(r.Title+" ("+r.Year+")"),
			row("ISBN-13", s.value.Render(r.ISBN13)),
			row("Buy price", s.value.Render(r.BuyPrice)),
			row("Buyback", price),
			row("Profit", profit),
			row("URL", s.muted.Render(r.Buyback.URL)),
		)
	}

	return ""
}
