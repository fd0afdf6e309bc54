package cbc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/iwvelando/mediaplan/internal/solver"
)

// ParseSolution reads a CBC solution file. The first line carries the
// status; the rest are "index name value reduced-cost" rows, optionally
// prefixed with "**" when the value breaks a bound.
func ParseSolution(r io.Reader) (solver.Raw, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return solver.Raw{}, fmt.Errorf("reading solution status: %w", err)
		}
		return solver.Raw{}, errors.New("empty solution file")
	}
	raw := solver.Raw{Values: map[string]*float64{}}
	raw.Status, raw.TimeLimitReported = parseStatus(scanner.Text())

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) > 0 && fields[0] == "**" {
			fields = fields[1:]
		}
		if len(fields) < 3 {
			continue
		}
		value, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return solver.Raw{}, fmt.Errorf("parsing value of %s: %w", fields[1], err)
		}
		raw.Values[fields[1]] = &value
	}
	if err := scanner.Err(); err != nil {
		return solver.Raw{}, fmt.Errorf("reading solution: %w", err)
	}
	return raw, nil
}

func parseStatus(line string) (solver.RawStatus, bool) {
	status := strings.ToLower(strings.TrimSpace(line))
	switch {
	case strings.HasPrefix(status, "optimal"):
		return solver.RawOptimal, false
	case strings.HasPrefix(status, "stopped on time"):
		return solver.RawNotSolved, true
	case strings.HasPrefix(status, "stopped"):
		return solver.RawNotSolved, false
	case strings.Contains(status, "infeasible"):
		return solver.RawInfeasible, false
	case strings.HasPrefix(status, "unbounded"):
		return solver.RawUnbounded, false
	default:
		return solver.RawUndefined, false
	}
}

// LogReportsTimeLimit reports whether CBC's console output says the search
// was cut off by the time limit.
func LogReportsTimeLimit(log string) bool {
	log = strings.ToLower(log)
	return strings.Contains(log, "stopped on time") || strings.Contains(log, "time limit reached")
}
