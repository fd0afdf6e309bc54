package cbc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"

	"github.com/iwvelando/mediaplan/internal/model"
)

// termsPerLine keeps LP rows readable; CBC accepts arbitrarily long rows.
const termsPerLine = 8

var lpNameUnsafe = regexp.MustCompile(`[^A-Za-z0-9_.]`)

// WriteLP writes m in CPLEX LP format. Term-less constraints are skipped.
func WriteLP(w io.Writer, m *model.Model) error {
	if m == nil || len(m.Variables) == 0 {
		return errors.New("model has no variables")
	}
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "\\* %s *\\\n", m.Name)
	fmt.Fprintln(bw, "Maximize")
	objective := m.Objective
	if len(objective) == 0 {
		objective = []model.Term{{Var: 0, Coef: 0}}
	}
	writeRow(bw, "obj", m, objective)
	fmt.Fprintln(bw)

	fmt.Fprintln(bw, "Subject To")
	for i, c := range m.Constraints {
		if c.Trivial() {
			continue
		}
		name := constraintName(i, c.Name)
		if c.ForcedZero || c.Lower == c.Upper {
			writeRow(bw, name, m, c.Terms)
			fmt.Fprintf(bw, " = %s\n", num(c.Lower))
			continue
		}
		writeRow(bw, name+"_L", m, c.Terms)
		fmt.Fprintf(bw, " >= %s\n", num(c.Lower))
		writeRow(bw, name+"_U", m, c.Terms)
		fmt.Fprintf(bw, " <= %s\n", num(c.Upper))
	}

	fmt.Fprintln(bw, "Bounds")
	for _, v := range m.Variables {
		if v.Lower == v.Upper {
			fmt.Fprintf(bw, " %s = %d\n", v.Name, v.Lower)
			continue
		}
		fmt.Fprintf(bw, " %d <= %s <= %d\n", v.Lower, v.Name, v.Upper)
	}

	fmt.Fprintln(bw, "General")
	for i, v := range m.Variables {
		if i > 0 && i%termsPerLine == 0 {
			fmt.Fprintln(bw)
		}
		fmt.Fprintf(bw, " %s", v.Name)
	}
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "End")
	return bw.Flush()
}

func writeRow(w io.Writer, name string, m *model.Model, terms []model.Term) {
	fmt.Fprintf(w, "%s:", name)
	for i, t := range terms {
		if i > 0 && i%termsPerLine == 0 {
			fmt.Fprint(w, "\n")
		}
		sign := "+"
		coef := t.Coef
		if coef < 0 {
			sign = "-"
			coef = -coef
		}
		fmt.Fprintf(w, " %s %s %s", sign, num(coef), m.Variables[t.Var].Name)
	}
}

// constraintName prefixes the position so that names which collapse to the
// same sanitized text stay distinct.
func constraintName(i int, name string) string {
	return fmt.Sprintf("c%d_%s", i, lpNameUnsafe.ReplaceAllString(name, "_"))
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
