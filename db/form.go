package db

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/nestdb/nestdb/sql"
)

// Form describes an input form derived from a table's columns. Building a
// form never reads or writes table data.
type Form struct {
	Table  string
	Fields []FormField
}

// FormField is one input of a form.
type FormField struct {
	Name          string
	Type          string
	Label         string
	Hidden        bool
	Options       []string
	Default       any
	AutoIncrement bool
}

var (
	formHeadRe   = regexp.MustCompile(`(?i)^FORM\s+(\S+)\s*$`)
	selectOptRe  = regexp.MustCompile(`(?i)^SELECT\((.*)\)$`)
	quotedTailRe = regexp.MustCompile(`"([^"]*)"\s*$`)
)

// BuildForm interprets a FORM block: a header naming the table followed by
// optional per-field override lines (type + label, HIDDEN, SELECT(...),
// DEFAULT). Field order follows the table's column order.
func (x *Executor) BuildForm(ctx context.Context, block, database string) (*Form, error) {
	lines := strings.Split(block, "\n")
	head := strings.TrimSpace(lines[0])
	m := formHeadRe.FindStringSubmatch(head)
	if m == nil {
		return nil, fmt.Errorf("malformed form header %q", head)
	}
	table := strings.Trim(m[1], "`[]\"")
	if !sql.ValidateIdentifier(table) {
		return nil, fmt.Errorf("form table: invalid identifier %q", table)
	}

	form := &Form{Table: table}

	meta, err := x.TableMeta(ctx, database, table)
	if err == nil {
		for _, col := range meta.Columns {
			form.Fields = append(form.Fields, FormField{
				Name:          col.Name,
				Type:          col.Type,
				Label:         col.Name,
				AutoIncrement: col.AutoIncrement || meta.IsIdentity(col.Name),
			})
		}
	} else {
		// no metadata; fall back to a generic column listing from data
		rows, rowErr := x.TableRows(ctx, database, table, 1)
		if rowErr != nil || len(rows) == 0 {
			return nil, fmt.Errorf("form table %q not found in %q", table, database)
		}
		for _, col := range columnOrder(rows) {
			form.Fields = append(form.Fields, FormField{Name: col, Type: "VARCHAR", Label: col})
		}
	}

	for _, raw := range lines[1:] {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if err := form.applyOverride(line); err != nil {
			return nil, err
		}
	}

	return form, nil
}

func (f *Form) applyOverride(line string) error {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return fmt.Errorf("malformed form override %q", line)
	}

	target := f.field(fields[0])
	if target == nil {
		return fmt.Errorf("form override names unknown column %q", fields[0])
	}

	spec := fields[1]
	switch {
	case strings.EqualFold(spec, "HIDDEN"):
		target.Hidden = true

	case selectOptRe.MatchString(spec):
		opts := selectOptRe.FindStringSubmatch(spec)[1]
		for _, opt := range strings.Split(opts, ",") {
			if o := strings.TrimSpace(opt); o != "" {
				target.Options = append(target.Options, o)
			}
		}
		target.Type = "SELECT"

	case strings.EqualFold(spec, "DEFAULT"):
		if len(fields) < 3 {
			return fmt.Errorf("form override %q is missing a default value", line)
		}
		target.Default = strings.Trim(strings.Join(fields[2:], " "), `"'`)

	default:
		target.Type = strings.ToUpper(spec)
		if m := quotedTailRe.FindStringSubmatch(line); m != nil {
			target.Label = m[1]
		}
	}

	return nil
}

func (f *Form) field(name string) *FormField {
	for i := range f.Fields {
		if strings.EqualFold(f.Fields[i].Name, name) {
			return &f.Fields[i]
		}
	}
	return nil
}

// Display renders the form definition as a table.
func (f *Form) Display(w io.Writer) {
	fmt.Fprintf(w, "FORM %s\n", f.Table)
	t := NewTable(w)
	t.Header([]string{"field", "type", "label", "flags"})
	for _, fld := range f.Fields {
		var flags []string
		if fld.Hidden {
			flags = append(flags, "hidden")
		}
		if fld.AutoIncrement {
			flags = append(flags, "auto")
		}
		if len(fld.Options) > 0 {
			flags = append(flags, "options: "+strings.Join(fld.Options, ","))
		}
		if fld.Default != nil {
			flags = append(flags, fmt.Sprintf("default: %v", fld.Default))
		}
		t.Row([]string{fld.Name, fld.Type, fld.Label, strings.Join(flags, " ")})
	}
	t.Render()
}
