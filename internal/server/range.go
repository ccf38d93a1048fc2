package server

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/calliope-fm/calliope/internal/shared"
)

// parseRange interprets a Range header of the form "bytes=<s?>-<e?>". An
// empty header means the full object (nil, nil). Non-bytes units and
// malformed specs fail with [shared.ErrInvalidInput]; multi-range requests
// are not supported.
func parseRange(header string) (start, end *int64, err error) {
	if header == "" {
		return nil, nil, nil
	}

	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return nil, nil, fmt.Errorf("%w: unsupported range unit", shared.ErrInvalidInput)
	}
	if strings.Contains(spec, ",") {
		return nil, nil, fmt.Errorf("%w: multiple ranges not supported", shared.ErrInvalidInput)
	}

	from, to, ok := strings.Cut(spec, "-")
	if !ok {
		return nil, nil, fmt.Errorf("%w: malformed range %q", shared.ErrInvalidInput, header)
	}
	if from == "" && to == "" {
		return nil, nil, fmt.Errorf("%w: empty range %q", shared.ErrInvalidInput, header)
	}

	if from != "" {
		v, err := strconv.ParseInt(from, 10, 64)
		if err != nil || v < 0 {
			return nil, nil, fmt.Errorf("%w: malformed range start %q", shared.ErrInvalidInput, from)
		}
		start = &v
	}
	if to != "" {
		v, err := strconv.ParseInt(to, 10, 64)
		if err != nil || v < 0 {
			return nil, nil, fmt.Errorf("%w: malformed range end %q", shared.ErrInvalidInput, to)
		}
		end = &v
	}
	if start != nil && end != nil && *end < *start {
		return nil, nil, fmt.Errorf("%w: inverted range %q", shared.ErrInvalidInput, header)
	}
	return start, end, nil
}
