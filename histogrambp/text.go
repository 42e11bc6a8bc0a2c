package histogrambp

import (
	"bufio"
	"io"
	"strconv"
)

// TextContentType is the Content-Type of the output of WriteText.
const TextContentType = "text/plain; version=0.0.4"

const infBound = "+Inf"

// WriteText renders s in the Prometheus text exposition format under the
// given metric family name:
//
//	<name>_bucket{le="0.080"} 0
//	...
//	<name>_bucket{le="+Inf"} <count>
//	<name>_sum <sum>
//	<name>_count <count>
//
// Bucket values are the running total of the stored counts across ascending
// bounds, so they never decrease from one bound to the next. Bounds are
// printed with 3 decimal places and the sum with 6.
//
// No HELP or TYPE lines are written.
func WriteText(w io.Writer, name string, s Snapshot) error {
	bw := bufio.NewWriter(w)
	// strconv into a scratch buffer keeps the per-line cost allocation free.
	var scratch []byte

	var cumulative uint64
	for i, c := range s.Counts {
		cumulative += c
		scratch = appendBucketLine(scratch[:0], name, strconv.FormatFloat(s.Buckets.At(i), 'f', 3, 64), cumulative)
		bw.Write(scratch)
	}
	scratch = appendBucketLine(scratch[:0], name, infBound, s.Count)
	bw.Write(scratch)

	scratch = append(scratch[:0], name...)
	scratch = append(scratch, "_sum "...)
	scratch = strconv.AppendFloat(scratch, s.Sum, 'f', 6, 64)
	scratch = append(scratch, '\n')
	bw.Write(scratch)

	scratch = append(scratch[:0], name...)
	scratch = append(scratch, "_count "...)
	scratch = strconv.AppendUint(scratch, s.Count, 10)
	scratch = append(scratch, '\n')
	bw.Write(scratch)

	// bufio.Writer keeps the first write error and returns it from Flush.
	return bw.Flush()
}

func appendBucketLine(buf []byte, name, le string, value uint64) []byte {
	buf = append(buf, name...)
	buf = append(buf, `_bucket{le="`...)
	buf = append(buf, le...)
	buf = append(buf, `"} `...)
	buf = strconv.AppendUint(buf, value, 10)
	return append(buf, '\n')
}
