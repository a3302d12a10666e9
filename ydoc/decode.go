package ydoc

import (
	"encoding/json"
	"errors"

	"github.com/samthor/ycrdt/wire"
)

var (
	// ErrBadUpdate is reported for a structurally invalid update message.
	ErrBadUpdate = errors.New("ydoc: malformed update")
)

func readIDPtr(dec *wire.Decoder) *ID {
	id := ID{Client: dec.Int(), Clock: dec.Int()}
	return &id
}

// readClientRefs decodes the struct section of an update into per-client
// block lists. Nothing is integrated yet; parent IDs stay symbolic until the
// blocks' dependencies resolve, while root-name parents are bound here to
// the named root type (registering it kind-less if it is new).
func readClientRefs(dec *wire.Decoder, d *Doc) (map[int][]block, error) {
	numClients := dec.Int()
	out := make(map[int][]block, numClients)

	for range numClients {
		client := dec.Int()
		numBlocks := dec.Int()
		clock := dec.Int()
		if dec.Err() != nil {
			return nil, dec.Err()
		}

		list := make([]block, 0, numBlocks)
		for range numBlocks {
			info := dec.Byte()
			tag := info & infoTagMask

			if tag == refGC {
				n := dec.Int()
				if dec.Err() != nil {
					return nil, dec.Err()
				}
				if n <= 0 {
					return nil, ErrBadUpdate
				}
				list = append(list, &gcBlock{id: ID{Client: client, Clock: clock}, n: n})
				clock += n
				continue
			}

			it := &item{id: ID{Client: client, Clock: clock}}
			if info&infoOrigin != 0 {
				it.origin = readIDPtr(dec)
			}
			if info&infoRightOrigin != 0 {
				it.rightOrigin = readIDPtr(dec)
			}
			if it.origin == nil && it.rightOrigin == nil {
				if info&infoParentRoot != 0 {
					name := dec.String()
					if dec.Err() == nil {
						it.parent = d.rootBranch(name, branchGeneric)
					}
				} else {
					it.parentID = readIDPtr(dec)
				}
			}
			if info&infoParentSub != 0 {
				it.parentSub = dec.String()
			}

			c, err := readContent(dec, tag)
			if err != nil {
				return nil, err
			}
			it.content = c
			if it.getLen() == 0 {
				return nil, ErrBadUpdate
			}

			list = append(list, it)
			clock += it.getLen()
		}

		out[client] = append(out[client], list...)
	}

	return out, dec.Err()
}

func readContent(dec *wire.Decoder, tag byte) (content, error) {
	switch tag {
	case refDeleted:
		return &contentDeleted{n: dec.Int()}, dec.Err()

	case refString:
		return &contentString{s: dec.String()}, dec.Err()

	case refAny:
		count := dec.Int()
		if dec.Err() != nil {
			return nil, dec.Err()
		}
		vals := make([]any, 0, count)
		for range count {
			v, err := readJSON(dec)
			if err != nil {
				return nil, err
			}
			vals = append(vals, v)
		}
		return &contentAny{vals: vals}, nil

	case refEmbed:
		v, err := readJSON(dec)
		if err != nil {
			return nil, err
		}
		return &contentEmbed{val: v}, nil

	case refFormat:
		key := dec.String()
		v, err := readJSON(dec)
		if err != nil {
			return nil, err
		}
		return &contentFormat{key: key, val: v}, nil

	case refType:
		kind := branchKind(dec.Byte())
		if kind > branchXmlElement {
			return nil, ErrBadUpdate
		}
		b := newBranch(kind)
		if kind == branchXmlElement {
			b.name = dec.String()
		}
		return &contentType{branch: b}, dec.Err()
	}

	return nil, ErrBadUpdate
}

func readJSON(dec *wire.Decoder) (any, error) {
	b := dec.Bytes()
	if dec.Err() != nil {
		return nil, dec.Err()
	}

	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, ErrBadUpdate
	}
	return out, nil
}
