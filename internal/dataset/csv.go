package dataset

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// DefaultPath is where the delivery log is looked up when no path is configured.
const DefaultPath = "data/deliveries.csv"

const utf8BOM = "\ufeff"

// CSVSource reads a delimited delivery file with a header row.
type CSVSource struct {
	Path      string
	Delimiter rune
	Nulls     NullSet
}

// NewCSVSource creates a CSV source. Empty path and zero delimiter take defaults.
func NewCSVSource(path string, delimiter rune, nulls NullSet) *CSVSource {
	if path == "" {
		path = DefaultPath
	}
	if delimiter == 0 {
		delimiter = ','
	}
	if nulls == nil {
		nulls = NewNullSet(nil)
	}
	return &CSVSource{Path: path, Delimiter: delimiter, Nulls: nulls}
}

// Describe identifies the source in logs and health output
func (s *CSVSource) Describe() string {
	return "csv:" + s.Path
}

// Fingerprint changes whenever the file is replaced or rewritten.
func (s *CSVSource) Fingerprint(ctx context.Context) (string, error) {
	info, err := os.Stat(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.Wrapf(ErrDataNotFound, "stat %s", s.Path)
		}
		return "", errors.Wrapf(err, "stat %s", s.Path)
	}
	if info.IsDir() {
		return "", errors.Wrapf(ErrDataNotFound, "%s is a directory", s.Path)
	}
	return fmt.Sprintf("%s:%d:%d", s.Path, info.Size(), info.ModTime().UnixNano()), nil
}

// Load opens the file and parses every delivery.
func (s *CSVSource) Load(ctx context.Context) (*Table, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrDataNotFound, "open %s", s.Path)
		}
		return nil, errors.Wrapf(err, "open %s", s.Path)
	}
	defer f.Close()

	return s.Read(ctx, f)
}

// Read parses deliveries from r.
func (s *CSVSource) Read(ctx context.Context, r io.Reader) (*Table, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.Comma = s.Delimiter
	if reader.Comma == 0 {
		reader.Comma = ','
	}

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.Wrapf(ErrDataFormat, "%s: empty file, no header row", s.Path)
	}
	if err != nil {
		return nil, errors.Wrapf(ErrDataFormat, "%s: reading header: %v", s.Path, err)
	}

	idx, err := columnIndex(header)
	if err != nil {
		return nil, errors.Wrapf(ErrDataFormat, "%s: %v", s.Path, err)
	}

	table := &Table{Source: s.Describe()}
	for row := 1; ; row++ {
		if row%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(ErrDataFormat, "%s: %v", s.Path, err)
		}

		matchID := strings.TrimSpace(s.Nulls.Value(record[idx.matchID]))
		if matchID == "" {
			continue
		}

		table.Deliveries = append(table.Deliveries, Delivery{
			MatchID:     matchID,
			BattingTeam: s.Nulls.Value(record[idx.battingTeam]),
			BowlingTeam: s.Nulls.Value(record[idx.bowlingTeam]),
			MatchWonBy:  s.Nulls.Value(record[idx.matchWonBy]),
		})
	}

	return table, nil
}

type columns struct {
	matchID     int
	battingTeam int
	bowlingTeam int
	matchWonBy  int
}

func columnIndex(header []string) (columns, error) {
	positions := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		name = strings.TrimSpace(name)
		if _, seen := positions[name]; !seen {
			positions[name] = i
		}
	}

	var missing []string
	for _, name := range RequiredColumns {
		if _, ok := positions[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return columns{}, fmt.Errorf("missing required column(s): %s", strings.Join(missing, ", "))
	}

	return columns{
		matchID:     positions[ColumnMatchID],
		battingTeam: positions[ColumnBattingTeam],
		bowlingTeam: positions[ColumnBowlingTeam],
		matchWonBy:  positions[ColumnMatchWonBy],
	}, nil
}
