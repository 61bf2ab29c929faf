package postgres

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/artelab/backoffice/internal/domain/order"
)

// encodeItems renders order items as the JSONB document stored in
// orders.items. Unit prices are written as strings to keep them exact.
func encodeItems(items []order.Item) []byte {
	var e jx.Encoder
	e.ArrStart()
	for _, it := range items {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Str(it.ProductID)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("unit_price")
		e.Str(it.UnitPrice.String())
		e.ObjEnd()
	}
	e.ArrEnd()
	return e.Bytes()
}

// decodeItems parses orders.items. Numeric unit prices are accepted too.
func decodeItems(data []byte) ([]order.Item, error) {
	items := []order.Item{}
	d := jx.DecodeBytes(data)
	err := d.Arr(func(d *jx.Decoder) error {
		var it order.Item
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "product_id":
				v, err := d.Str()
				it.ProductID = v
				return err
			case "quantity":
				v, err := d.Int()
				it.Quantity = v
				return err
			case "unit_price":
				price, err := decodePrice(d)
				it.UnitPrice = price
				return err
			default:
				return d.Skip()
			}
		}); err != nil {
			return err
		}
		items = append(items, it)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode order items")
	}
	return items, nil
}

func decodePrice(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		v, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		raw = v
	case jx.Number:
		v, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		raw = v.String()
	default:
		return decimal.Zero, errors.Errorf("unexpected unit_price type %s", d.Next())
	}
	return decimal.NewFromString(raw)
}
