package output

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rpgo/lifetime-planner/internal/domain"
)

// ErrUnsupportedFormat is returned for format names with no registered formatter.
var ErrUnsupportedFormat = errors.New("unsupported format")

// GenerateReport writes result to dir in the named format and returns the
// files written. "all" writes every format the result supports.
func GenerateReport(result *domain.SimulationResult, format, dir string) ([]string, error) {
	if NormalizeFormatName(format) == "all" {
		var files []string
		for _, f := range builtInFormatters {
			if f.Name() == "detailed-csv" && len(result.Trajectories) == 0 {
				continue
			}
			name, err := WriteFormatted(f, result, dir, Extension(f))
			if err != nil {
				return files, fmt.Errorf("%s report: %w", f.Name(), err)
			}
			files = append(files, name)
		}
		return files, nil
	}

	f := GetFormatterByName(format)
	if f == nil {
		return nil, UnsupportedFormatError(format)
	}
	name, err := WriteFormatted(f, result, dir, Extension(f))
	if err != nil {
		return nil, err
	}
	return []string{name}, nil
}

// UnsupportedFormatError enriches ErrUnsupportedFormat with the available
// formatters and aliases.
func UnsupportedFormatError(format string) error {
	return fmt.Errorf("%w: %q. Try one of: %s (aliases: %s)", ErrUnsupportedFormat, format, strings.Join(AvailableFormatterNames(), ", "), strings.Join(AvailableFormatAliases(), ", "))
}
