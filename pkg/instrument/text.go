package instrument

import (
	"bytes"
	"fmt"
	"io"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// WriteText writes the exposition text of each instrument to w, separated by
// blank lines. Instruments without series are skipped.
func WriteText(w io.Writer, instruments ...Instrument) error {
	families := make([]*dto.MetricFamily, 0, len(instruments))
	for _, i := range instruments {
		if i == nil || i.Len() == 0 {
			continue
		}
		families = append(families, i.Family())
	}
	return WriteFamilies(w, families...)
}

// WriteFamilies writes metric families in the text exposition format,
// separated by blank lines. Empty families are skipped.
func WriteFamilies(w io.Writer, families ...*dto.MetricFamily) error {
	written := 0
	for _, mf := range families {
		if mf == nil || len(mf.GetMetric()) == 0 {
			continue
		}
		if written > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
		written++
	}
	return nil
}

// Text returns the exposition text of a single instrument.
func Text(i Instrument) string {
	var buf bytes.Buffer
	if err := WriteText(&buf, i); err != nil {
		return ""
	}
	return buf.String()
}
