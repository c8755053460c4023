package survey

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// WriteBLN writes the buffered footprint outline as a Golden Software
// blanking file: a "<count>,0" line followed by one "x,y" line per vertex.
// Coordinates stay in survey units.
func WriteBLN(s *Session, path string) error {
	outline := s.Footprint.Outline()
	if len(outline) == 0 {
		return fmt.Errorf("%w: session %s has no footprint", ErrNothingToExport, s.Info.ID)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "%d,0\n", len(outline))
	for _, p := range outline {
		w.WriteString(strconv.FormatFloat(p[0], 'f', -1, 64))
		w.WriteByte(',')
		w.WriteString(strconv.FormatFloat(p[1], 'f', -1, 64))
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}
