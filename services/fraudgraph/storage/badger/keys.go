// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"fmt"
	"strings"
)

// Key layout. All graph data lives under a generation prefix; a build
// writes a complete new generation and flips the meta marker last, so a
// half-written generation is never readable. Old generations are dropped
// after the flip.
//
//	meta/gen                      -> current generation number
//	g/<gen>/user/<id>             -> User JSON
//	g/<gen>/device/<id>           -> Device JSON
//	g/<gen>/ud/<user>/<device>    -> link count (uses-device multiplicity)
//	g/<gen>/du/<device>/<user>    -> link count (reverse index)
//	g/<gen>/txn/<id>              -> Transaction JSON
//	g/<gen>/txs/<sender>/<txid>   -> receiver ID (forward adjacency)
//	g/<gen>/txr/<receiver>/<txid> -> sender ID (reverse adjacency)
//	g/<gen>/stats                 -> Statistics JSON
//
// The field separator is the ASCII unit separator, which cannot appear in
// well-formed identifiers; the dataset schema rejects empty IDs and the
// builder rejects IDs containing the separator.
const keySep = "\x1f"

var metaGenKey = []byte("meta" + keySep + "gen")

// genPrefix returns the key prefix for a generation.
func genPrefix(gen uint64) []byte {
	return []byte(fmt.Sprintf("g%s%d%s", keySep, gen, keySep))
}

func key(gen uint64, parts ...string) []byte {
	return []byte(string(genPrefix(gen)) + strings.Join(parts, keySep))
}

func userKey(gen uint64, id string) []byte     { return key(gen, "user", id) }
func deviceKey(gen uint64, id string) []byte   { return key(gen, "device", id) }
func udKey(gen uint64, u, d string) []byte     { return key(gen, "ud", u, d) }
func duKey(gen uint64, d, u string) []byte     { return key(gen, "du", d, u) }
func txnKey(gen uint64, id string) []byte      { return key(gen, "txn", id) }
func txsKey(gen uint64, s, txid string) []byte { return key(gen, "txs", s, txid) }
func txrKey(gen uint64, r, txid string) []byte { return key(gen, "txr", r, txid) }
func statsKey(gen uint64) []byte               { return key(gen, "stats") }

// prefix builds an iteration prefix ending in the separator.
func prefix(gen uint64, parts ...string) []byte {
	return []byte(string(genPrefix(gen)) + strings.Join(parts, keySep) + keySep)
}

// lastSegment returns the key content after the final separator.
func lastSegment(k []byte) string {
	s := string(k)
	if i := strings.LastIndex(s, keySep); i >= 0 {
		return s[i+1:]
	}
	return s
}
