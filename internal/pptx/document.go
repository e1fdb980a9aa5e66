// Package pptx assembles slide results into a PresentationML (.pptx)
// document with one full-bleed picture per slide.
package pptx

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spherical/pptx-builder/internal/domain"
)

// zipEpoch is stamped on every entry so identical input gives identical bytes.
var zipEpoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

type slide struct {
	image     []byte
	placement domain.Placement
}

// Document is an append-only presentation. It is sealed by the first call
// to WriteTo or Save.
type Document struct {
	canvas domain.CanvasSpec
	slides []slide
	sealed bool
}

// NewDocument creates an empty document for the given canvas.
func NewDocument(canvas domain.CanvasSpec) *Document {
	return &Document{canvas: canvas}
}

// Assemble builds a document from coordinator results, walking indices
// 1..n in order. A missing index means the caller assembled before the
// coordinator reported full success.
func Assemble(results map[int]domain.SlideResult, n int, canvas domain.CanvasSpec) (*Document, error) {
	doc := NewDocument(canvas)
	for i := 1; i <= n; i++ {
		res, ok := results[i]
		if !ok {
			return nil, fmt.Errorf("assemble: missing slide result for index %d of %d", i, n)
		}
		if err := doc.AddSlide(res.Artifact, res.Placement); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// AddSlide appends a blank slide holding the PNG at artifact. The image is
// read into memory, so the artifact may be removed once AddSlide returns.
func (d *Document) AddSlide(artifact domain.TransientArtifact, placement domain.Placement) error {
	if d.sealed {
		return domain.SerializationError("document already finalized", nil)
	}
	data, err := os.ReadFile(artifact)
	if err != nil {
		return domain.SerializationError(fmt.Sprintf("cannot read artifact %s", artifact), err)
	}
	d.slides = append(d.slides, slide{image: data, placement: placement})
	return nil
}

// SlideCount returns the number of slides appended so far.
func (d *Document) SlideCount() int {
	return len(d.slides)
}

// WriteTo serializes the document as a .pptx package and seals it.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	if d.sealed {
		return 0, domain.SerializationError("document already finalized", nil)
	}
	d.sealed = true

	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)

	for _, p := range d.parts() {
		if err := writeEntry(zw, p.name, p.data); err != nil {
			return cw.n, domain.SerializationError(fmt.Sprintf("cannot write %s", p.name), err)
		}
	}
	if err := zw.Close(); err != nil {
		return cw.n, domain.SerializationError("cannot finish package", err)
	}
	return cw.n, nil
}

// Save writes the document to path atomically: the package is written to a
// sibling temporary file which is renamed over path only on success.
func (d *Document) Save(path string) (err error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return domain.SerializationError(fmt.Sprintf("cannot create output next to %s", path), err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = d.WriteTo(tmp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return domain.SerializationError("cannot flush output", err)
	}
	if err = tmp.Close(); err != nil {
		return domain.SerializationError("cannot close output", err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return domain.SerializationError("cannot set output permissions", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return domain.SerializationError(fmt.Sprintf("cannot move output to %s", path), err)
	}
	return nil
}

type part struct {
	name string
	data []byte
}

// parts lists every package part in a fixed order.
func (d *Document) parts() []part {
	parts := []part{
		{"[Content_Types].xml", []byte(d.contentTypes())},
		{"_rels/.rels", []byte(rootRels)},
		{"docProps/app.xml", []byte(appProps)},
		{"ppt/presentation.xml", []byte(d.presentation())},
		{"ppt/_rels/presentation.xml.rels", []byte(d.presentationRels())},
		{"ppt/slideMasters/slideMaster1.xml", []byte(slideMaster)},
		{"ppt/slideMasters/_rels/slideMaster1.xml.rels", []byte(slideMasterRels)},
		{"ppt/slideLayouts/slideLayout1.xml", []byte(blankLayout)},
		{"ppt/slideLayouts/_rels/slideLayout1.xml.rels", []byte(blankLayoutRels)},
		{"ppt/theme/theme1.xml", []byte(theme)},
	}
	for i, s := range d.slides {
		n := i + 1
		parts = append(parts,
			part{fmt.Sprintf("ppt/slides/slide%d.xml", n), []byte(slideXML(n, s.placement))},
			part{fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", n), []byte(slideRels(n))},
			part{fmt.Sprintf("ppt/media/image%d.png", n), s.image},
		)
	}
	return parts
}

func (d *Document) contentTypes() string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`)
	b.WriteString(`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`)
	b.WriteString(`<Default Extension="xml" ContentType="application/xml"/>`)
	b.WriteString(`<Default Extension="png" ContentType="image/png"/>`)
	override(&b, "/ppt/presentation.xml", ctPresentation)
	override(&b, "/ppt/slideMasters/slideMaster1.xml", ctSlideMaster)
	override(&b, "/ppt/slideLayouts/slideLayout1.xml", ctSlideLayout)
	override(&b, "/ppt/theme/theme1.xml", ctTheme)
	override(&b, "/docProps/app.xml", ctExtended)
	for i := range d.slides {
		override(&b, fmt.Sprintf("/ppt/slides/slide%d.xml", i+1), ctSlide)
	}
	b.WriteString(`</Types>`)
	return b.String()
}

func override(b *strings.Builder, partName, contentType string) {
	fmt.Fprintf(b, `<Override PartName="%s" ContentType="%s"/>`, partName, contentType)
}

// presentation.xml.rels: rId1 master, rId2 theme, rId3.. slides.
func (d *Document) presentation() string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<p:presentation ` + pmlNamespaces + ` saveSubsetFonts="1">`)
	b.WriteString(`<p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst>`)
	if len(d.slides) > 0 {
		b.WriteString(`<p:sldIdLst>`)
		for i := range d.slides {
			fmt.Fprintf(&b, `<p:sldId id="%d" r:id="rId%d"/>`, 256+i, i+3)
		}
		b.WriteString(`</p:sldIdLst>`)
	}
	fmt.Fprintf(&b, `<p:sldSz cx="%d" cy="%d"/>`, d.canvas.Width, d.canvas.Height)
	b.WriteString(`<p:notesSz cx="6858000" cy="9144000"/>`)
	b.WriteString(`</p:presentation>`)
	return b.String()
}

func (d *Document) presentationRels() string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<Relationships xmlns="` + nsRel + `">`)
	b.WriteString(`<Relationship Id="rId1" Type="` + relSlideMaster + `" Target="slideMasters/slideMaster1.xml"/>`)
	b.WriteString(`<Relationship Id="rId2" Type="` + relTheme + `" Target="theme/theme1.xml"/>`)
	for i := range d.slides {
		fmt.Fprintf(&b, `<Relationship Id="rId%d" Type="%s" Target="slides/slide%d.xml"/>`, i+3, relSlide, i+1)
	}
	b.WriteString(`</Relationships>`)
	return b.String()
}

func slideXML(n int, p domain.Placement) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<p:sld ` + pmlNamespaces + `><p:cSld><p:spTree>`)
	b.WriteString(emptyGroupShape)
	fmt.Fprintf(&b, `<p:pic><p:nvPicPr><p:cNvPr id="2" name="Picture %d" descr="Slide %d"/>`, n, n)
	b.WriteString(`<p:cNvPicPr><a:picLocks noChangeAspect="1"/></p:cNvPicPr><p:nvPr/></p:nvPicPr>`)
	b.WriteString(`<p:blipFill><a:blip r:embed="rId2"/><a:stretch><a:fillRect/></a:stretch></p:blipFill>`)
	fmt.Fprintf(&b, `<p:spPr><a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm>`,
		p.Left, p.Top, p.Width, p.Height)
	b.WriteString(`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr></p:pic>`)
	b.WriteString(`</p:spTree></p:cSld><p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:sld>`)
	return b.String()
}

func slideRels(n int) string {
	return xmlHeader +
		`<Relationships xmlns="` + nsRel + `">` +
		`<Relationship Id="rId1" Type="` + relSlideLayout + `" Target="../slideLayouts/slideLayout1.xml"/>` +
		fmt.Sprintf(`<Relationship Id="rId2" Type="%s" Target="../media/image%d.png"/>`, relImage, n) +
		`</Relationships>`
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	method := zip.Deflate
	if strings.HasSuffix(name, ".png") {
		method = zip.Store
	}
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   method,
		Modified: zipEpoch,
	})
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
