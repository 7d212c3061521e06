package smd

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', -1, 32)
}

// WriteText encodes doc in the studiomdl text format. Floats are written with
// the shortest representation that reads back to the same float32.
func WriteText(out io.Writer, doc *Document) error {
	w := bufio.NewWriter(out)
	line := func(fields ...string) {
		w.WriteString(strings.Join(fields, " "))
		w.WriteByte('\n')
	}

	line("version", strconv.Itoa(doc.Version))

	line("nodes")
	for _, b := range doc.Bones {
		if strings.ContainsRune(b.Name, '"') {
			return errors.Errorf("smd: bone name %q contains a quote", b.Name)
		}
		line(strconv.Itoa(b.ID), `"`+b.Name+`"`, strconv.Itoa(b.Parent))
	}
	line("end")

	line("skeleton")
	for _, kf := range doc.Keyframes {
		line("time", strconv.Itoa(kf.Time))
		for _, s := range kf.States {
			line(strconv.Itoa(s.Bone),
				formatFloat(s.Pos[0]), formatFloat(s.Pos[1]), formatFloat(s.Pos[2]),
				formatFloat(s.Rot[0]), formatFloat(s.Rot[1]), formatFloat(s.Rot[2]))
		}
	}
	line("end")

	if doc.Triangles != nil {
		line("triangles")
		for _, t := range doc.Triangles {
			if t.Material == "" || t.Material == "end" {
				return errors.Errorf("smd: material name %q cannot be written as text", t.Material)
			}
			line(t.Material)
			for _, v := range t.Verts {
				fields := []string{strconv.Itoa(v.ParentBone),
					formatFloat(v.Pos[0]), formatFloat(v.Pos[1]), formatFloat(v.Pos[2]),
					formatFloat(v.Normal[0]), formatFloat(v.Normal[1]), formatFloat(v.Normal[2]),
					formatFloat(v.UV[0]), formatFloat(v.UV[1])}
				if len(v.Links) > 0 {
					fields = append(fields, strconv.Itoa(len(v.Links)))
					for _, l := range v.Links {
						fields = append(fields, strconv.Itoa(l.Bone), formatFloat(l.Weight))
					}
				}
				line(fields...)
			}
		}
		line("end")
	}
	return w.Flush()
}
