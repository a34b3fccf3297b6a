package backend

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/cart"
)

// The backend is loosely typed: nested references may be null, populated
// objects or bare ids, and numbers sometimes arrive as strings. Decoding is
// field by field so a single odd value never fails the whole response.

// DecodeCart decodes a cart response body, or an exported copy of one, into
// raw rows. It accepts a bare array of rows or an object holding them under
// "cartItems", "items" or "cart.items".
func DecodeCart(data []byte) ([]cart.RawItem, error) {
	d := jx.DecodeBytes(data)
	if d.Next() == jx.Array {
		return decodeCartItems(d)
	}

	var items []cart.RawItem
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "cartItems", "items":
			if d.Next() != jx.Array {
				return d.Skip()
			}
			v, err := decodeCartItems(d)
			items = v
			return err
		case "cart":
			if d.Next() != jx.Object {
				return d.Skip()
			}
			return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				if string(key) != "items" && string(key) != "cartItems" || d.Next() != jx.Array {
					return d.Skip()
				}
				v, err := decodeCartItems(d)
				items = v
				return err
			})
		default:
			return d.Skip()
		}
	})
	return items, err
}

func decodeCartItems(d *jx.Decoder) ([]cart.RawItem, error) {
	var items []cart.RawItem
	err := d.Arr(func(d *jx.Decoder) error {
		if d.Next() != jx.Object {
			return d.Skip()
		}
		item, err := decodeCartItem(d)
		if err != nil {
			return err
		}
		items = append(items, item)
		return nil
	})
	return items, err
}

func decodeCartItem(d *jx.Decoder) (cart.RawItem, error) {
	var item cart.RawItem
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "_id", "id":
			v, err := readString(d)
			item.ID = v
			return err
		case "quantity":
			v, err := readDecimal(d)
			if err != nil || v == nil {
				return err
			}
			q := int(v.IntPart())
			item.Quantity = &q
			return nil
		case "productId", "product":
			if d.Next() != jx.Object {
				// null, or an unpopulated bare id: no snapshot to price.
				return d.Skip()
			}
			p, err := decodeProduct(d)
			if err != nil {
				return err
			}
			item.Product = &p
			return nil
		default:
			return d.Skip()
		}
	})
	return item, err
}

func decodeProduct(d *jx.Decoder) (cart.RawProduct, error) {
	var p cart.RawProduct
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		return decodeProductField(d, string(key), &p)
	})
	return p, err
}

func decodeProductField(d *jx.Decoder, key string, p *cart.RawProduct) error {
	switch key {
	case "_id", "id":
		v, err := readString(d)
		p.ID = v
		return err
	case "name":
		v, err := readString(d)
		p.Name = v
		return err
	case "price":
		v, err := readDecimal(d)
		p.Price = v
		return err
	case "discount":
		v, err := readDecimal(d)
		p.Discount = v
		return err
	case "images":
		v, err := readImages(d)
		p.Images = v
		return err
	default:
		return d.Skip()
	}
}

// decodeProductResponse accepts either {"product": {...}} or a bare product
// object. It returns nil when no product is present.
func decodeProductResponse(data []byte) (*cart.RawProduct, error) {
	var (
		wrapped *cart.RawProduct
		bare    cart.RawProduct
	)
	d := jx.DecodeBytes(data)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) == "product" {
			if d.Next() != jx.Object {
				return d.Skip()
			}
			p, err := decodeProduct(d)
			wrapped = &p
			return err
		}
		return decodeProductField(d, string(key), &bare)
	})
	if err != nil {
		return nil, err
	}
	if wrapped != nil {
		return wrapped, nil
	}
	if bare.ID != "" {
		return &bare, nil
	}
	return nil, nil
}

func decodeCategories(data []byte) ([]Category, error) {
	d := jx.DecodeBytes(data)
	if d.Next() == jx.Array {
		return decodeCategoryList(d)
	}

	var cats []Category
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "categories" || d.Next() != jx.Array {
			return d.Skip()
		}
		v, err := decodeCategoryList(d)
		cats = v
		return err
	})
	return cats, err
}

func decodeCategoryList(d *jx.Decoder) ([]Category, error) {
	cats := []Category{}
	err := d.Arr(func(d *jx.Decoder) error {
		if d.Next() != jx.Object {
			return d.Skip()
		}
		var c Category
		if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			switch string(key) {
			case "_id", "id":
				v, err := readString(d)
				c.ID = v
				return err
			case "name":
				v, err := readString(d)
				c.Name = v
				return err
			default:
				return d.Skip()
			}
		}); err != nil {
			return err
		}
		if c.ID != "" {
			cats = append(cats, c)
		}
		return nil
	})
	return cats, err
}

func decodeOrderConfirmation(data []byte) (*OrderConfirmation, error) {
	var conf OrderConfirmation
	fields := func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "_id", "id", "orderId":
			v, err := readString(d)
			conf.OrderID = v
			return err
		case "status":
			v, err := readString(d)
			conf.Status = v
			return err
		default:
			return d.Skip()
		}
	}

	d := jx.DecodeBytes(data)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) == "order" && d.Next() == jx.Object {
			return d.ObjBytes(fields)
		}
		return fields(d, key)
	})
	if err != nil {
		return nil, err
	}
	if conf.OrderID == "" {
		return nil, errors.New("response has no order id")
	}
	return &conf, nil
}

// decodeErrorMessage extracts a human readable message from an error body.
func decodeErrorMessage(data []byte) string {
	var msg string
	d := jx.DecodeBytes(data)
	if d.Next() == jx.Object {
		_ = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			switch string(key) {
			case "message", "error":
				if msg != "" || d.Next() != jx.String {
					return d.Skip()
				}
				v, err := d.Str()
				msg = v
				return err
			default:
				return d.Skip()
			}
		})
	}
	if msg != "" {
		return msg
	}
	raw := strings.TrimSpace(string(data))
	if len(raw) > 200 {
		raw = raw[:200]
	}
	return raw
}

func encodeOrder(req OrderRequest) []byte {
	var e jx.Encoder
	e.ObjStart()

	e.FieldStart("paymentMethod")
	e.Str(req.PaymentMethod)
	e.FieldStart("userId")
	e.Str(req.UserID)
	e.FieldStart("totalPrice")
	e.Raw([]byte(req.TotalPrice.String()))

	e.FieldStart("cartItems")
	e.ArrStart()
	for _, item := range req.CartItems {
		if item.Orphaned() {
			continue
		}
		e.ObjStart()
		e.FieldStart("_id")
		e.Str(item.ID)
		e.FieldStart("productId")
		e.Str(item.ProductID())
		e.FieldStart("quantity")
		e.Int(item.Quantity)
		e.FieldStart("price")
		e.Raw([]byte(item.UnitPrice.String()))
		e.FieldStart("discount")
		e.Int(item.DiscountPercent)
		e.ObjEnd()
	}
	e.ArrEnd()

	a := req.Address
	e.FieldStart("address")
	e.ObjStart()
	for _, f := range [...]struct{ k, v string }{
		{"fullName", a.FullName},
		{"phone", a.Phone},
		{"street", a.Street},
		{"city", a.City},
		{"state", a.State},
		{"postalCode", a.PostalCode},
		{"country", a.Country},
	} {
		e.FieldStart(f.k)
		e.Str(f.v)
	}
	e.ObjEnd()

	e.ObjEnd()
	return e.Bytes()
}

func readString(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	default:
		return "", d.Skip()
	}
}

// readDecimal reads a number or numeric string. Null, other types and
// non-numeric strings yield nil.
func readDecimal(d *jx.Decoder) (*decimal.Decimal, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return nil, err
		}
		v, err := decimal.NewFromString(n.String())
		if err != nil {
			return nil, errors.Wrapf(err, "parse number %q", n.String())
		}
		return &v, nil
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return nil, err
		}
		v, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return nil, nil
		}
		return &v, nil
	default:
		return nil, d.Skip()
	}
}

// readImages accepts an array of URLs or of {"url": ...} objects.
func readImages(d *jx.Decoder) ([]string, error) {
	if d.Next() != jx.Array {
		return nil, d.Skip()
	}
	var images []string
	err := d.Arr(func(d *jx.Decoder) error {
		switch d.Next() {
		case jx.String:
			v, err := d.Str()
			if err == nil && v != "" {
				images = append(images, v)
			}
			return err
		case jx.Object:
			return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				if string(key) != "url" || d.Next() != jx.String {
					return d.Skip()
				}
				v, err := d.Str()
				if err == nil && v != "" {
					images = append(images, v)
				}
				return err
			})
		default:
			return d.Skip()
		}
	})
	return images, err
}
