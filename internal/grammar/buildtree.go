// Copyright 2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package grammar

import "github.com/tads3/govm/internal/value"

// ResolvedBinding is one (property, value) pair build_match_tree assigns
// onto a BuildRecord's instantiated object. Child, if >= 0, indexes an
// earlier BuildRecord in the same BuildMatchTree result (its processor
// object); otherwise Word carries the terminal value directly.
type ResolvedBinding struct {
	Prop  value.PropID
	Child int // index into the BuildMatchTree result, or -1
	Word  Word
}

// BuildRecord is one node of a flattened match tree: the processor object
// template to instantiate and the bindings to assign onto it. Records are
// emitted in dependency order — a record's Child indices always refer to
// records earlier in the slice — so a caller can instantiate by walking
// the slice once, front to back.
//
// BuildMatchTree deliberately stops short of allocating anything: like
// imgfmt.DecodeObjects, it hands back abstract records for the caller
// (normally Vm) to install into the real object table, so grammar stays a
// leaf package with no dependency on objtab/metaclass.
type BuildRecord struct {
	TemplateID value.ObjID
	Bindings   []ResolvedBinding
}

// BuildMatchTree walks m's bindings depth-first and flattens every bound
// processor object into a BuildRecord, per spec §4.3 "Building the
// result": "build_match_tree walks the match tree depth-first,
// instantiates the processor object per match, assigns each bound
// (property, value) pair, [and] returns the root processor object." When
// m has a processor object, its record is last in the returned slice.
//
// A Match (or nested child Match) whose alternative bound no processor
// object (ProcessorObjectID == value.InvalidObjID) contributes no record
// of its own; its bindings, if any, are skipped, since there is no
// object to assign them onto. Its Children are still walked, so the
// records of processor objects nested under it are emitted. Under a Match
// that has a processor object, a child Match reachable only
// through an unbound token (Token.Prop == 0, e.g. a verb literal, or a
// TokNSpeech/star run with no property of its own) is never visited:
// with no (property, value) pair to hang it from, it has nothing to
// contribute to the built object tree.
func BuildMatchTree(m Match) []BuildRecord {
	var records []BuildRecord
	buildMatchTree(m, &records)
	return records
}

func buildMatchTree(m Match, records *[]BuildRecord) int {
	if !m.ProcessorObjectID.Valid() {
		for _, c := range m.Children {
			buildMatchTree(c, records)
		}
		return -1
	}

	bindings := make([]ResolvedBinding, 0, len(m.Bindings))
	for _, b := range m.Bindings {
		if !b.Value.IsChild {
			bindings = append(bindings, ResolvedBinding{Prop: b.Prop, Child: -1, Word: b.Value.Word})
			continue
		}
		childIdx := -1
		if b.Value.Child != nil {
			childIdx = buildMatchTree(*b.Value.Child, records)
		}
		bindings = append(bindings, ResolvedBinding{Prop: b.Prop, Child: childIdx})
	}

	*records = append(*records, BuildRecord{TemplateID: m.ProcessorObjectID, Bindings: bindings})
	return len(*records) - 1
}
