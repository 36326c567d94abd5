package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultDatasets are the Bird Audio Detection collections read by the CLI.
var DefaultDatasets = []string{"freefield", "warblr"}

// LabeledFile is one audio file with its class id.
type LabeledFile struct {
	Path  string
	Label int64
}

// LabeledIterator yields labeled files until it returns io.EOF.
type LabeledIterator interface {
	Next() (LabeledFile, error)
}

// SliceIterator iterates over a fixed list.
type SliceIterator struct {
	items []LabeledFile
	pos   int
}

// NewSliceIterator returns an iterator over items.
func NewSliceIterator(items []LabeledFile) *SliceIterator {
	return &SliceIterator{items: items}
}

// Next returns the next item or io.EOF.
func (s *SliceIterator) Next() (LabeledFile, error) {
	if s.pos >= len(s.items) {
		return LabeledFile{}, io.EOF
	}
	it := s.items[s.pos]
	s.pos++
	return it, nil
}

// Len returns the total number of items.
func (s *SliceIterator) Len() int { return len(s.items) }

// Scan lists the labeled files of each dataset under dataPath. A dataset
// named "warblr" is described by dataPath/warblr.csv (columns itemid,
// datasetid, hasbird with a header row) and its audio lives in
// dataPath/warblr/<itemid>.wav. At most nMax files are taken per dataset;
// nMax <= 0 takes all of them.
func Scan(dataPath string, datasets []string, nMax int) (*SliceIterator, error) {
	var items []LabeledFile
	for _, name := range datasets {
		got, err := scanOne(dataPath, name, nMax)
		if err != nil {
			return nil, err
		}
		items = append(items, got...)
	}
	return NewSliceIterator(items), nil
}

func scanOne(dataPath, name string, nMax int) ([]LabeledFile, error) {
	csvPath := filepath.Join(dataPath, name+".csv")
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", name, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("dataset %s: read header: %w", name, err)
	}
	idCol, labelCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "itemid":
			idCol = i
		case "hasbird", "label":
			labelCol = i
		}
	}
	if idCol < 0 || labelCol < 0 {
		return nil, fmt.Errorf("dataset %s: %s needs itemid and hasbird columns", name, csvPath)
	}

	var items []LabeledFile
	for nMax <= 0 || len(items) < nMax {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", name, err)
		}
		label, err := strconv.ParseInt(strings.TrimSpace(row[labelCol]), 10, 64)
		if err != nil || label < 0 {
			return nil, fmt.Errorf("dataset %s: item %s: bad label %q", name, row[idCol], row[labelCol])
		}
		items = append(items, LabeledFile{
			Path:  filepath.Join(dataPath, name, strings.TrimSpace(row[idCol])+".wav"),
			Label: label,
		})
	}
	return items, nil
}
