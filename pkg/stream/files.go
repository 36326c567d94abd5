package stream

import (
	"errors"
	"fmt"
	"os"

	"github.com/bft-labs/birdrec/internal/domain"
	"github.com/bft-labs/birdrec/pkg/dataset"
)

// Augmentation file parts, read for the train subset only.
const (
	PartAugment     = "augment"
	PartMoreAugment = "more_augment"
)

// Files resolves the record files a stream over subset reads, in order.
// The base file must exist. With augment set on the train subset the
// augment file is required and the more_augment file is appended when it
// exists.
func Files(prefix string, subset domain.Subset, augment bool) ([]string, error) {
	base := dataset.Path(prefix, string(subset))
	if _, err := os.Stat(base); err != nil {
		return nil, fmt.Errorf("%s records: %w", subset, err)
	}
	files := []string{base}
	if !augment || subset != domain.SubsetTrain {
		return files, nil
	}

	aug := dataset.Path(prefix, PartAugment)
	if _, err := os.Stat(aug); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrMissingAugmentation, aug)
		}
		return nil, err
	}
	files = append(files, aug)

	more := dataset.Path(prefix, PartMoreAugment)
	if _, err := os.Stat(more); err == nil {
		files = append(files, more)
	}
	return files, nil
}
