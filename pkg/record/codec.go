package record

import (
	"fmt"
	"math"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/bft-labs/birdrec/internal/domain"
)

// Feature names in the Example map.
const (
	FeatureSeq   = "seq"
	FeatureShape = "shape"
	FeatureLabel = "label"
)

// Field numbers from tensorflow/core/example/{example,feature}.proto.
const (
	exampleFeatures = 1 // Example.features
	featuresFeature = 1 // Features.feature (map)
	mapKey          = 1
	mapValue        = 2
	featureFloat    = 2 // Feature.float_list
	featureInt64    = 3 // Feature.int64_list
	listValue       = 1 // {Float,Int64}List.value
)

// Encode serializes rec as a tf.train.Example.
func Encode(rec domain.Record) ([]byte, error) {
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}

	entries := map[string][]byte{
		FeatureSeq:   floatFeature(rec.Sequence),
		FeatureShape: int64Feature(rec.Shape[:]),
		FeatureLabel: int64Feature([]int64{rec.Label}),
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var features []byte
	for _, k := range keys {
		var entry []byte
		entry = protowire.AppendTag(entry, mapKey, protowire.BytesType)
		entry = protowire.AppendString(entry, k)
		entry = protowire.AppendTag(entry, mapValue, protowire.BytesType)
		entry = protowire.AppendBytes(entry, entries[k])

		features = protowire.AppendTag(features, featuresFeature, protowire.BytesType)
		features = protowire.AppendBytes(features, entry)
	}

	out := make([]byte, 0, len(features)+8)
	out = protowire.AppendTag(out, exampleFeatures, protowire.BytesType)
	out = protowire.AppendBytes(out, features)
	return out, nil
}

func floatFeature(vals []float32) []byte {
	packed := make([]byte, 0, 4*len(vals))
	for _, v := range vals {
		packed = protowire.AppendFixed32(packed, math.Float32bits(v))
	}
	var list []byte
	list = protowire.AppendTag(list, listValue, protowire.BytesType)
	list = protowire.AppendBytes(list, packed)

	var feat []byte
	feat = protowire.AppendTag(feat, featureFloat, protowire.BytesType)
	return protowire.AppendBytes(feat, list)
}

func int64Feature(vals []int64) []byte {
	var packed []byte
	for _, v := range vals {
		packed = protowire.AppendVarint(packed, uint64(v))
	}
	var list []byte
	list = protowire.AppendTag(list, listValue, protowire.BytesType)
	list = protowire.AppendBytes(list, packed)

	var feat []byte
	feat = protowire.AppendTag(feat, featureInt64, protowire.BytesType)
	return protowire.AppendBytes(feat, list)
}

// Decode parses a tf.train.Example produced by Encode (or by TensorFlow).
// Unknown features are ignored; the three required ones must be present
// with the right kind and arity. Errors match domain.ErrDecode.
func Decode(b []byte) (domain.Record, error) {
	feats, err := parseExample(b)
	if err != nil {
		return domain.Record{}, decodeErr("%v", err)
	}

	seq, ok := feats[FeatureSeq]
	if !ok || seq.kind != featureFloat {
		return domain.Record{}, decodeErr("missing float feature %q", FeatureSeq)
	}
	shape, ok := feats[FeatureShape]
	if !ok || shape.kind != featureInt64 || len(shape.ints) != 2 {
		return domain.Record{}, decodeErr("feature %q must hold 2 int64 values", FeatureShape)
	}
	label, ok := feats[FeatureLabel]
	if !ok || label.kind != featureInt64 || len(label.ints) != 1 {
		return domain.Record{}, decodeErr("feature %q must hold 1 int64 value", FeatureLabel)
	}

	rec := domain.Record{
		Sequence: seq.floats,
		Shape:    [2]int64{shape.ints[0], shape.ints[1]},
		Label:    label.ints[0],
	}
	if err := rec.Validate(); err != nil {
		return domain.Record{}, decodeErr("%v", err)
	}
	return rec, nil
}

func decodeErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrDecode, fmt.Sprintf(format, args...))
}

type feature struct {
	kind   protowire.Number
	floats []float32
	ints   []int64
}

func parseExample(b []byte) (map[string]feature, error) {
	out := make(map[string]feature, 3)
	err := eachField(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		if num != exampleFeatures || typ != protowire.BytesType {
			return nil
		}
		return eachField(v, func(num protowire.Number, typ protowire.Type, entry []byte) error {
			if num != featuresFeature || typ != protowire.BytesType {
				return nil
			}
			key, f, err := parseEntry(entry)
			if err != nil {
				return err
			}
			out[key] = f
			return nil
		})
	})
	return out, err
}

func parseEntry(b []byte) (string, feature, error) {
	var (
		key string
		f   feature
	)
	err := eachField(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case mapKey:
			key = string(v)
		case mapValue:
			var err error
			f, err = parseFeature(v)
			return err
		}
		return nil
	})
	return key, f, err
}

func parseFeature(b []byte) (feature, error) {
	var f feature
	err := eachField(b, func(num protowire.Number, typ protowire.Type, list []byte) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case featureFloat:
			f.kind = featureFloat
			return parseFloatList(list, &f.floats)
		case featureInt64:
			f.kind = featureInt64
			return parseInt64List(list, &f.ints)
		}
		return nil
	})
	return f, err
}

// parseFloatList accepts both packed and unpacked encodings.
func parseFloatList(b []byte, dst *[]float32) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == listValue && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			if len(packed)%4 != 0 {
				return fmt.Errorf("packed float list has %d bytes", len(packed))
			}
			if *dst == nil {
				*dst = make([]float32, 0, len(packed)/4)
			}
			for len(packed) > 0 {
				v, m := protowire.ConsumeFixed32(packed)
				if m < 0 {
					return protowire.ParseError(m)
				}
				*dst = append(*dst, math.Float32frombits(v))
				packed = packed[m:]
			}
		case num == listValue && typ == protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			*dst = append(*dst, math.Float32frombits(v))
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	if *dst == nil {
		*dst = []float32{}
	}
	return nil
}

func parseInt64List(b []byte, dst *[]int64) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == listValue && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			for len(packed) > 0 {
				v, m := protowire.ConsumeVarint(packed)
				if m < 0 {
					return protowire.ParseError(m)
				}
				*dst = append(*dst, int64(v))
				packed = packed[m:]
			}
		case num == listValue && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			*dst = append(*dst, int64(v))
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return nil
}

// eachField walks the top-level fields of a message, handing length-delimited
// values to fn and skipping the rest.
func eachField(b []byte, fn func(protowire.Number, protowire.Type, []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		if typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			if err := fn(num, typ, v); err != nil {
				return err
			}
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nil
}
