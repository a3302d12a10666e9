package ydoc

import (
	"slices"

	"github.com/samthor/ycrdt/wire"
)

// writeStructs encodes every block whose clock is at or past the remote
// state vector, in sorted client order so equal stores encode to equal
// bytes.
func writeStructs(e *wire.Encoder, store *structStore, sv map[int]int) {
	var include []int
	for client := range store.clients {
		if store.getState(client) > sv[client] {
			include = append(include, client)
		}
	}
	slices.Sort(include)

	e.Int(len(include))
	for _, client := range include {
		blocks := store.clients[client]
		clock := sv[client]
		index := findIndex(blocks, clock)

		e.Int(client)
		e.Int(len(blocks) - index)
		e.Int(clock)

		first := blocks[index]
		first.write(e, clock-first.getID().Clock)
		for i := index + 1; i < len(blocks); i++ {
			blocks[i].write(e, 0)
		}
	}
}

// writeUpdateFromTransaction encodes everything the transaction changed:
// the structs appended since beforeState, then the delete set. Reports
// false when the transaction changed nothing.
func writeUpdateFromTransaction(e *wire.Encoder, tx *Transaction) bool {
	changed := false
	for client, after := range tx.afterState {
		if tx.beforeState[client] != after {
			changed = true
			break
		}
	}
	if !changed && tx.ds.empty() {
		return false
	}

	writeStructs(e, tx.doc.store, tx.beforeState)
	tx.ds.write(e)
	return true
}

// EncodeStateAsUpdate encodes an update holding everything a remote peer
// with the given encoded state vector is missing, plus the full delete set.
// A nil state vector encodes the entire document.
func (d *Doc) EncodeStateAsUpdate(encodedSV []byte) ([]byte, error) {
	sv := map[int]int{}
	if len(encodedSV) != 0 {
		var err error
		sv, err = decodeStateVector(encodedSV)
		if err != nil {
			return nil, err
		}
	}

	var e wire.Encoder
	writeStructs(&e, d.store, sv)
	ds := newDeleteSetFromStructStore(d.store)
	ds.sortAndMerge()
	ds.write(&e)
	return e.Data(), nil
}

// EncodeStateVector encodes the document's state vector: for each client,
// the next expected clock.
func (d *Doc) EncodeStateVector() []byte {
	sv := d.store.stateVector()

	var e wire.Encoder
	e.Int(len(sv))
	for _, client := range sortedClients(sv) {
		e.Int(client)
		e.Int(sv[client])
	}
	return e.Data()
}

func decodeStateVector(b []byte) (map[int]int, error) {
	dec := wire.NewDecoder(b)
	out := map[int]int{}

	numClients := dec.Int()
	for range numClients {
		client := dec.Int()
		clock := dec.Int()
		if dec.Err() != nil {
			return nil, dec.Err()
		}
		out[client] = clock
	}
	return out, dec.Err()
}
