// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package mls

import (
	"sort"

	sagecrypto "github.com/spacepanda-project/spacepanda/crypto"
)

// treeSecretLabel domain-separates the pairwise HKDF combine used to fold
// per-leaf secrets into one tree root secret.
const treeSecretLabel = "SpacePanda MLS 1.0 Tree Secret"

// leaf is one occupied or vacated position in the ratchet tree (spec §3
// "ratchet_tree: authenticated binary tree of leaves"). Each leaf owns a
// secret that only its holder and, transitively through tree merges, the
// rest of the group can reconstruct.
type leaf struct {
	Index    uint32
	Identity string
	Secret   []byte // zeroed in place when this leaf is removed; replaced by the supplied secret when it is rotated
	Occupied bool
}

// ratchetTree holds the leaves in index order. Index reuse is avoided: a
// removed leaf is marked unoccupied rather than deleted, so indices stay
// stable for members who joined later and reference them in proposals.
type ratchetTree struct {
	leaves []*leaf
}

func newRatchetTree() *ratchetTree {
	return &ratchetTree{}
}

// addLeaf appends a new occupied leaf and returns its index.
func (t *ratchetTree) addLeaf(identity string, secret []byte) uint32 {
	idx := uint32(len(t.leaves))
	t.leaves = append(t.leaves, &leaf{Index: idx, Identity: identity, Secret: secret, Occupied: true})
	return idx
}

// setLeafAt installs an occupied leaf at an exact index, padding with
// vacant placeholder leaves as needed. Used to reconstruct a tree from a
// Welcome's groupInfo, where historical removals left index gaps that
// must be preserved exactly so every member agrees on leaf numbering.
func (t *ratchetTree) setLeafAt(idx uint32, identity string, secret []byte) {
	for uint32(len(t.leaves)) <= idx {
		n := uint32(len(t.leaves))
		t.leaves = append(t.leaves, &leaf{Index: n, Occupied: false})
	}
	t.leaves[idx] = &leaf{Index: idx, Identity: identity, Secret: secret, Occupied: true}
}

// removeLeaf vacates a leaf and scrubs its secret so no future tree-secret
// computation can depend on the removed member's key material (spec §4.4
// "Forward secrecy / post-compromise security").
func (t *ratchetTree) removeLeaf(idx uint32) bool {
	if int(idx) >= len(t.leaves) || !t.leaves[idx].Occupied {
		return false
	}
	l := t.leaves[idx]
	for i := range l.Secret {
		l.Secret[i] = 0
	}
	l.Occupied = false
	l.Identity = ""
	return true
}

// rotateLeaf replaces a leaf's secret with newSecret, used by the
// proponent of a commit to advance their own path (forward secrecy on
// every commit, not only on Remove).
func (t *ratchetTree) rotateLeaf(idx uint32, newSecret []byte) bool {
	if int(idx) >= len(t.leaves) || !t.leaves[idx].Occupied {
		return false
	}
	t.leaves[idx].Secret = newSecret
	return true
}

// clone deep-copies the tree so speculative validation never mutates live
// state before a commit is fully accepted.
func (t *ratchetTree) clone() *ratchetTree {
	out := &ratchetTree{leaves: make([]*leaf, len(t.leaves))}
	for i, l := range t.leaves {
		sc := make([]byte, len(l.Secret))
		copy(sc, l.Secret)
		out.leaves[i] = &leaf{Index: l.Index, Identity: l.Identity, Secret: sc, Occupied: l.Occupied}
	}
	return out
}

// rootSecret folds every occupied leaf's secret into a single value via
// repeated HKDF combine, in ascending index order so all members compute
// the same root from the same tree state.
func (t *ratchetTree) rootSecret() ([]byte, error) {
	indices := make([]int, 0, len(t.leaves))
	for i, l := range t.leaves {
		if l.Occupied {
			indices = append(indices, i)
		}
	}
	sort.Ints(indices)

	acc := make([]byte, 32)
	for _, i := range indices {
		combined := append(append([]byte{}, acc...), t.leaves[i].Secret...)
		next, err := sagecrypto.HKDFExtractExpand(nil, combined, []byte(treeSecretLabel), 32)
		if err != nil {
			return nil, err
		}
		acc = next
	}
	return acc, nil
}

