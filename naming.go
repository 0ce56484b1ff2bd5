package chartlog

import (
	"path/filepath"
	"strings"

	"github.com/chartlog/chartlog/date"
)

// DefaultFileNameTemplate is the chart file naming template used when
// the configuration does not override it.
const DefaultFileNameTemplate = "{symbol}_{timeframe}_{session}_{date}_{outcome}"

// unsafeNames replaces the characters that are unsafe in file and
// folder names on common filesystems.
var unsafeNames = strings.NewReplacer(
	"<", "_", ">", "_", ":", "_", `"`, "_", "/", "_",
	`\`, "_", "|", "_", "?", "_", "*", "_",
)

// SanitizeName makes s safe to use as a single file or folder name:
// unsafe characters become underscores, surrounding whitespace is
// trimmed, and an empty result falls back to "Untitled".
//
// Sanitization is idempotent but not injective: two distinct names may
// sanitize to the same folder segment, in which case their chart
// subdirectories silently merge.
func SanitizeName(s string) string {
	s = strings.TrimSpace(unsafeNames.Replace(s))
	if s == "" {
		return "Untitled"
	}
	return s
}

// NameTokens are the values substituted into a file name template.
// Empty tokens take a defined fallback.
type NameTokens struct {
	Symbol    string
	Timeframe string
	Session   string
	Date      date.Date
	Outcome   string
	Setup     string
	Project   string
	Theme     string
}

// TokensFor derives the template tokens for a chart, given the display
// names of its project and theme.
func TokensFor(c Chart, projectName, themeName string) NameTokens {
	return NameTokens{
		Symbol:    c.Symbol,
		Timeframe: c.Timeframe,
		Session:   c.Session,
		Date:      c.TradingDay,
		Outcome:   string(c.Outcome),
		Setup:     c.Setup,
		Project:   projectName,
		Theme:     themeName,
	}
}

func fallback(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// collapse removes all whitespace inside v; session and setup values
// often contain spaces ("New York") that have no place in a file name.
func collapse(v string) string {
	return strings.Join(strings.Fields(v), "")
}

// BuildFileName substitutes the tokens into the template, sanitizes
// the result, and appends an 8-character slice of the chart id plus
// the image extension. The id suffix keeps names unique even when two
// charts produce an identical templated prefix.
//
// Supported tokens: {symbol} {timeframe} {session} {date} {outcome}
// {setup} {project} {theme}.
func BuildFileName(template string, tokens NameTokens, id, ext string) string {
	if template == "" {
		template = DefaultFileNameTemplate
	}
	day := tokens.Date
	if day.IsZero() {
		day = date.Today()
	}
	r := strings.NewReplacer(
		"{symbol}", fallback(tokens.Symbol, "chart"),
		"{timeframe}", fallback(tokens.Timeframe, "tf"),
		"{session}", fallback(collapse(tokens.Session), "session"),
		"{date}", day.String(),
		"{outcome}", fallback(tokens.Outcome, "pending"),
		"{setup}", fallback(collapse(tokens.Setup), "setup"),
		"{project}", fallback(tokens.Project, DefaultProjectName),
		"{theme}", fallback(tokens.Theme, DefaultThemeName),
	)
	base := SanitizeName(r.Replace(template))
	if len(id) > 8 {
		id = id[:8]
	}
	if ext == "" {
		ext = ".png"
	} else if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return base + "_" + id + ext
}

// SidecarName returns the metadata file name for an image: the image
// name with its extension replaced by .json.
func SidecarName(imageFileName string) string {
	ext := filepath.Ext(imageFileName)
	return strings.TrimSuffix(imageFileName, ext) + ".json"
}
