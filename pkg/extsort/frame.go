package extsort

import (
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/wealthpack/pkg/errors"
	"github.com/ajitpratap0/wealthpack/pkg/models"
)

// Spill runs are a sequence of CBOR frames, one per record. Encoding uses
// Core Deterministic mode so identical chunks spill to identical bytes.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("extsort: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("extsort: CBOR decoder initialization failed: " + err.Error())
	}
}

type frame struct {
	_      struct{} `cbor:",toarray"`
	Seq    uint64
	Values []cell
}

// cell is one value on disk. Decimals travel as their literal so the
// exponent, and with it the observed scale, survives the round trip.
type cell struct {
	_    struct{} `cbor:",toarray"`
	Kind models.Kind
	Int  int64
	Text string
}

func toFrame(rec *models.Record) frame {
	f := frame{Seq: rec.Seq, Values: make([]cell, len(rec.Values))}
	for i, v := range rec.Values {
		c := cell{Kind: v.Kind()}
		switch v.Kind() {
		case models.KindInteger, models.KindTimestamp:
			c.Int = v.Int()
		case models.KindString:
			c.Text = v.Str()
		case models.KindDecimal:
			c.Text = models.DecimalLiteral(v.Dec())
		}
		f.Values[i] = c
	}
	return f
}

func (f frame) record() (*models.Record, error) {
	rec := models.NewRecord(f.Seq, len(f.Values))
	for i, c := range f.Values {
		switch c.Kind {
		case models.KindNull:
		case models.KindInteger:
			rec.Values[i] = models.Integer(c.Int)
		case models.KindTimestamp:
			rec.Values[i] = models.Timestamp(c.Int)
		case models.KindString:
			rec.Values[i] = models.String(c.Text)
		case models.KindDecimal:
			d, err := decimal.NewFromString(c.Text)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeInternal, "corrupt spill frame").
					WithDetail("seq", f.Seq)
			}
			rec.Values[i] = models.Decimal(d)
		default:
			return nil, errors.Newf(errors.ErrorTypeInternal, "corrupt spill frame: kind %d", c.Kind).
				WithDetail("seq", f.Seq)
		}
	}
	return rec, nil
}

type frameEncoder struct{ enc *cbor.Encoder }

func newFrameEncoder(w io.Writer) frameEncoder { return frameEncoder{enc: encMode.NewEncoder(w)} }

func (e frameEncoder) encode(rec *models.Record) error { return e.enc.Encode(toFrame(rec)) }

type frameDecoder struct{ dec *cbor.Decoder }

func newFrameDecoder(r io.Reader) frameDecoder { return frameDecoder{dec: decMode.NewDecoder(r)} }

// decode returns io.EOF after the last frame.
func (d frameDecoder) decode() (*models.Record, error) {
	var f frame
	if err := d.dec.Decode(&f); err != nil {
		return nil, err
	}
	return f.record()
}
