package upstream

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// AcceptEncoding is advertised upstream. zstd is decoded when a server
// sends it anyway.
const AcceptEncoding = "gzip, deflate, br"

// decoder unwraps every coding listed in a Content-Encoding header, last
// applied first.
func decoder(r io.Reader, contentEncoding string) (io.Reader, func(), error) {
	var closers []func()
	release := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	codings := strings.Split(contentEncoding, ",")
	for i := len(codings) - 1; i >= 0; i-- {
		coding := strings.ToLower(strings.TrimSpace(codings[i]))
		switch coding {
		case "", "identity":
			continue

		case "gzip", "x-gzip":
			zr, err := gzip.NewReader(r)
			if err != nil {
				release()
				return nil, nil, fmt.Errorf("%w: gzip: %v", ErrDecode, err)
			}
			closers = append(closers, func() { zr.Close() })
			r = zr

		case "deflate":
			// servers disagree on whether deflate carries the zlib wrapper
			br := bufio.NewReader(r)
			if header, err := br.Peek(2); err == nil && isZlibHeader(header) {
				zr, err := zlib.NewReader(br)
				if err != nil {
					release()
					return nil, nil, fmt.Errorf("%w: deflate: %v", ErrDecode, err)
				}
				closers = append(closers, func() { zr.Close() })
				r = zr
			} else {
				fr := flate.NewReader(br)
				closers = append(closers, func() { fr.Close() })
				r = fr
			}

		case "br":
			r = brotli.NewReader(r)

		case "zstd":
			zr, err := zstd.NewReader(r)
			if err != nil {
				release()
				return nil, nil, fmt.Errorf("%w: zstd: %v", ErrDecode, err)
			}
			closers = append(closers, zr.Close)
			r = zr

		default:
			release()
			return nil, nil, fmt.Errorf("%w: unsupported coding %q", ErrDecode, coding)
		}
	}
	return r, release, nil
}

func isZlibHeader(h []byte) bool {
	return h[0]&0x0f == 8 && (uint16(h[0])<<8|uint16(h[1]))%31 == 0
}

// readBody decodes r and reads at most limit bytes of the decoded content.
func readBody(r io.Reader, contentEncoding string, limit int64) ([]byte, error) {
	dec, release, err := decoder(r, contentEncoding)
	if err != nil {
		return nil, err
	}
	defer release()

	data, err := io.ReadAll(io.LimitReader(dec, limit+1))
	if err != nil {
		if contentEncoding != "" && !isTransportError(err) {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return nil, classify(err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	return data, nil
}
