package smd

const noBone = -1

// relabel returns a copy of doc with bone ids rewritten through ids. The bone
// keyed by drop (if any) is removed: its children become roots, and states and
// links that name it are discarded. Vertex parents with no mapping become -1.
func relabel(doc *Document, ids map[int]int, drop int, hasDrop bool) *Document {
	dropped := func(id int) bool { return hasDrop && id == drop }
	mapID := func(id int) int {
		if id == noBone || dropped(id) {
			return noBone
		}
		if n, ok := ids[id]; ok {
			return n
		}
		return noBone
	}

	out := &Document{Version: doc.Version}
	out.Bones = make([]Bone, 0, len(doc.Bones))
	for _, b := range doc.Bones {
		if dropped(b.ID) {
			continue
		}
		out.Bones = append(out.Bones, Bone{ID: ids[b.ID], Parent: mapID(b.Parent), Name: b.Name})
	}

	out.Keyframes = make([]Keyframe, 0, len(doc.Keyframes))
	for _, kf := range doc.Keyframes {
		nk := Keyframe{Time: kf.Time, States: make([]BoneState, 0, len(kf.States))}
		for _, s := range kf.States {
			if dropped(s.Bone) {
				continue
			}
			s.Bone = ids[s.Bone]
			nk.States = append(nk.States, s)
		}
		out.Keyframes = append(out.Keyframes, nk)
	}

	if doc.Triangles != nil {
		out.Triangles = make([]*Triangle, 0, len(doc.Triangles))
	}
	for _, t := range doc.Triangles {
		nt := &Triangle{Material: t.Material}
		for i, v := range t.Verts {
			nv := v
			nv.ParentBone = mapID(v.ParentBone)
			nv.Links = nil
			for _, l := range v.Links {
				if dropped(l.Bone) {
					continue
				}
				nv.Links = append(nv.Links, Link{Bone: ids[l.Bone], Weight: l.Weight})
			}
			nt.Verts[i] = nv
		}
		out.Triangles = append(out.Triangles, nt)
	}
	return out
}

func denseIDs(bones []Bone) bool {
	for i, b := range bones {
		if b.ID != i {
			return false
		}
	}
	return true
}

// normalize makes bone ids equal to list positions.
func normalize(doc *Document) (*Document, error) {
	if !denseIDs(doc.Bones) {
		if err := doc.CheckReferences(); err != nil {
			return nil, err
		}
		ids := make(map[int]int, len(doc.Bones))
		for i, b := range doc.Bones {
			if _, dup := ids[b.ID]; dup {
				return nil, &ReferenceError{Block: "nodes (duplicate id)", Bone: b.ID}
			}
			ids[b.ID] = i
		}
		for _, b := range doc.Bones {
			if _, ok := ids[b.Parent]; !ok && b.Parent != noBone {
				return nil, &ReferenceError{Block: "nodes", Bone: b.Parent}
			}
		}
		doc = relabel(doc, ids, 0, false)
	}
	if err := doc.ValidateBones(); err != nil {
		return nil, err
	}
	if err := doc.CheckReferences(); err != nil {
		return nil, err
	}
	return doc, nil
}

// RemoveImplicitBone returns a copy of doc without the bone called name, with
// ids renumbered densely in list order. The input is not modified. If no bone
// has that name, doc is returned as is.
func RemoveImplicitBone(doc *Document, name string) (*Document, error) {
	implicit, ok := doc.BoneByName(name)
	if !ok {
		return doc, nil
	}
	if err := doc.CheckReferences(); err != nil {
		return nil, err
	}
	ids := make(map[int]int, len(doc.Bones))
	for _, b := range doc.Bones {
		if b.ID != implicit.ID {
			ids[b.ID] = len(ids)
		}
	}
	out := relabel(doc, ids, implicit.ID, true)
	if err := out.ValidateBones(); err != nil {
		return nil, err
	}
	return out, nil
}
