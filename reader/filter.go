package reader

import (
	"bytes"
	"compress/zlib"
	"encoding/ascii85"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// decodeStream applies the stream's filter chain, including predictors
// declared in /DecodeParms.
func decodeStream(s Stream) ([]byte, error) {
	data := s.Data

	var filters []Name
	switch f := s.Dict["Filter"].(type) {
	case nil:
		return data, nil
	case Name:
		filters = []Name{f}
	case Array:
		for _, item := range f {
			n, ok := item.(Name)
			if !ok {
				return nil, fmt.Errorf("filter array contains non-name: %T", item)
			}
			filters = append(filters, n)
		}
	default:
		return nil, fmt.Errorf("unexpected filter type: %T", f)
	}

	var params []Dict
	switch p := s.Dict["DecodeParms"].(type) {
	case Dict:
		params = []Dict{p}
	case Array:
		for _, item := range p {
			d, _ := item.(Dict)
			params = append(params, d)
		}
	}

	var err error
	for i, f := range filters {
		data, err = applyFilter(f, data)
		if err != nil {
			return nil, fmt.Errorf("applying filter %s: %w", f, err)
		}
		if i < len(params) && params[i] != nil {
			data, err = applyPredictor(params[i], data)
			if err != nil {
				return nil, fmt.Errorf("applying predictor after %s: %w", f, err)
			}
		}
	}
	return data, nil
}

// applyFilter applies a single decoding filter.
func applyFilter(name Name, data []byte) ([]byte, error) {
	switch name {
	case "FlateDecode", "Fl":
		return flateDecode(data)
	case "ASCIIHexDecode", "AHx":
		return asciiHexDecode(data)
	case "ASCII85Decode", "A85":
		return ascii85Decode(data)
	default:
		return nil, fmt.Errorf("%w: filter %s", ErrUnsupported, name)
	}
}

// flateDecode inflates zlib data. Truncated streams, common in damaged files,
// yield whatever was inflated before the break.
func flateDecode(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("zlib init: %w", err)
	}
	defer r.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) && buf.Len() > 0 {
			return buf.Bytes(), nil
		}
		return nil, fmt.Errorf("zlib decompress: %w", err)
	}
	return buf.Bytes(), nil
}

// asciiHexDecode decodes ASCII hex data terminated by '>'.
func asciiHexDecode(data []byte) ([]byte, error) {
	var clean bytes.Buffer
	for _, b := range data {
		if b == '>' {
			break
		}
		if !isWhitespace(b) {
			clean.WriteByte(b)
		}
	}

	src := clean.Bytes()
	if len(src)%2 != 0 {
		src = append(src, '0')
	}

	dst := make([]byte, hex.DecodedLen(len(src)))
	if _, err := hex.Decode(dst, src); err != nil {
		return nil, fmt.Errorf("ascii hex decode: %w", err)
	}
	return dst, nil
}

// ascii85Decode decodes ASCII85 data terminated by "~>".
func ascii85Decode(data []byte) ([]byte, error) {
	if end := bytes.Index(data, []byte("~>")); end >= 0 {
		data = data[:end]
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, ascii85.NewDecoder(bytes.NewReader(data))); err != nil {
		return nil, fmt.Errorf("ascii85 decode: %w", err)
	}
	return buf.Bytes(), nil
}

// applyPredictor reverses the TIFF (2) or PNG (10-15) predictor described by
// a /DecodeParms dictionary.
func applyPredictor(params Dict, data []byte) ([]byte, error) {
	predictor, _ := params.GetInt("Predictor")
	if predictor <= 1 {
		return data, nil
	}

	colors := intParam(params, "Colors", 1)
	bpc := intParam(params, "BitsPerComponent", 8)
	columns := intParam(params, "Columns", 1)

	bpp := max(1, (colors*bpc+7)/8)
	rowLen := (columns*colors*bpc + 7) / 8
	if rowLen <= 0 {
		return nil, fmt.Errorf("invalid predictor row length %d", rowLen)
	}

	switch {
	case predictor == 2:
		if bpc != 8 {
			return nil, fmt.Errorf("%w: TIFF predictor with %d bits per component", ErrUnsupported, bpc)
		}
		out := bytes.Clone(data)
		for row := 0; row+rowLen <= len(out); row += rowLen {
			for i := bpp; i < rowLen; i++ {
				out[row+i] += out[row+i-bpp]
			}
		}
		return out, nil
	case predictor >= 10:
		return pngUnpredict(data, rowLen, bpp)
	default:
		return nil, fmt.Errorf("%w: predictor %d", ErrUnsupported, predictor)
	}
}

func intParam(d Dict, key Name, def int) int {
	if v, ok := d.GetInt(key); ok && v > 0 {
		return int(v)
	}
	return def
}

// pngUnpredict undoes per-row PNG filtering. Each row is prefixed by its
// filter type byte.
func pngUnpredict(data []byte, rowLen, bpp int) ([]byte, error) {
	stride := rowLen + 1
	out := make([]byte, 0, len(data)/stride*rowLen)
	prev := make([]byte, rowLen)

	for row := 0; row+stride <= len(data); row += stride {
		kind := data[row]
		cur := bytes.Clone(data[row+1 : row+stride])

		for i := range cur {
			var left, upLeft byte
			if i >= bpp {
				left = cur[i-bpp]
				upLeft = prev[i-bpp]
			}
			up := prev[i]

			switch kind {
			case 0:
			case 1:
				cur[i] += left
			case 2:
				cur[i] += up
			case 3:
				cur[i] += byte((int(left) + int(up)) / 2)
			case 4:
				cur[i] += paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("invalid PNG filter type %d", kind)
			}
		}

		out = append(out, cur...)
		prev = cur
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := absInt(p-int(a)), absInt(p-int(b)), absInt(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	default:
		return c
	}
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
