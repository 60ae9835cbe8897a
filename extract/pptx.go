package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
)

type relationships struct {
	Items []struct {
		ID     string `xml:"Id,attr"`
		Type   string `xml:"Type,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

type presentationXML struct {
	Slides []struct {
		RID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
	} `xml:"sldIdLst>sldId"`
}

type notesSlideXML struct {
	Shapes []struct {
		Placeholder struct {
			Type string `xml:"type,attr"`
		} `xml:"nvSpPr>nvPr>ph"`
		Paragraphs []struct {
			Runs []struct {
				Text string `xml:"t"`
			} `xml:"r"`
		} `xml:"txBody>p"`
	} `xml:"cSld>spTree>sp"`
}

// PPTXNotes reads the speaker notes of a .pptx, keyed by 1-based slide position in
// presentation order. Slides without notes are absent from the map.
func PPTXNotes(file string) (map[int]string, error) {
	zr, err := zip.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("open pptx: %w", err)
	}
	defer zr.Close()
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	slides, err := slideOrder(files)
	if err != nil {
		return nil, err
	}
	notes := make(map[int]string)
	for i, slide := range slides {
		var rels relationships
		if err := decodeZipXML(files, relsPath(slide), &rels); err != nil {
			continue
		}
		for _, r := range rels.Items {
			if !strings.HasSuffix(r.Type, "/notesSlide") {
				continue
			}
			var ns notesSlideXML
			if err := decodeZipXML(files, resolveTarget(slide, r.Target), &ns); err != nil {
				return nil, err
			}
			if text := ns.bodyText(); text != "" {
				notes[i+1] = text
			}
		}
	}
	return notes, nil
}

// slideOrder lists slide part names in presentation order, falling back to the
// numeric order of ppt/slides/slideN.xml when presentation.xml cannot be read.
func slideOrder(files map[string]*zip.File) ([]string, error) {
	var pres presentationXML
	var rels relationships
	if decodeZipXML(files, "ppt/presentation.xml", &pres) == nil &&
		decodeZipXML(files, "ppt/_rels/presentation.xml.rels", &rels) == nil {
		targets := make(map[string]string, len(rels.Items))
		for _, r := range rels.Items {
			targets[r.ID] = resolveTarget("ppt/presentation.xml", r.Target)
		}
		var out []string
		for _, s := range pres.Slides {
			if t, ok := targets[s.RID]; ok {
				out = append(out, t)
			}
		}
		if len(out) > 0 {
			return out, nil
		}
	}

	var out []string
	for name := range files {
		if strings.HasPrefix(name, "ppt/slides/slide") && strings.HasSuffix(name, ".xml") {
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("pptx has no slides")
	}
	num := func(name string) int {
		n, _ := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "ppt/slides/slide"), ".xml"))
		return n
	}
	sort.Slice(out, func(i, j int) bool { return num(out[i]) < num(out[j]) })
	return out, nil
}

func (n *notesSlideXML) bodyText() string {
	var lines []string
	for _, sp := range n.Shapes {
		if sp.Placeholder.Type != "body" {
			continue
		}
		for _, p := range sp.Paragraphs {
			var b strings.Builder
			for _, r := range p.Runs {
				b.WriteString(r.Text)
			}
			if line := strings.TrimSpace(b.String()); line != "" {
				lines = append(lines, line)
			}
		}
	}
	return strings.Join(lines, "\n")
}

func relsPath(part string) string {
	return path.Join(path.Dir(part), "_rels", path.Base(part)+".rels")
}

func resolveTarget(source, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Join(path.Dir(source), target)
}

func decodeZipXML(files map[string]*zip.File, name string, v any) error {
	f, ok := files[name]
	if !ok {
		return fmt.Errorf("pptx part %s missing", name)
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	if err := xml.NewDecoder(rc).Decode(v); err != nil {
		return fmt.Errorf("pptx part %s: %w", name, err)
	}
	return nil
}
