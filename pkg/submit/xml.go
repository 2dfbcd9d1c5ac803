package submit

import (
	"strconv"

	"github.com/beevik/etree"

	"github.com/cmsdynamo/dynamo/pkg/inventory"
)

// buildPayload renders the subscribe/delete XML document (spec §6):
//
//	<data version="2.0"><dbs name="…">
//	  <dataset name is-open is-transient>
//	    <block name is-open>(<file name bytes/>)*</block>…
//	  </dataset>…
//	</dbs></data>
//
// File elements carry name and bytes only; no checksum attribute is
// written.
//
// One <dbs> element is emitted per distinct dataset (dbs name carries no
// independent meaning here; it mirrors the dataset's own name, matching
// what a single-DBS deployment like this one always sends).
func buildPayload(dr *inventory.DatasetReplica) []byte {
	doc := etree.NewDocument()
	data := doc.CreateElement("data")
	data.CreateAttr("version", "2.0")

	dbs := data.CreateElement("dbs")
	dbs.CreateAttr("name", dr.Dataset.Name)

	dataset := dbs.CreateElement("dataset")
	dataset.CreateAttr("name", dr.Dataset.Name)
	dataset.CreateAttr("is-open", boolAttr(dr.Dataset.IsOpen))
	dataset.CreateAttr("is-transient", "n")

	for _, br := range dr.BlockReplicas() {
		block := dataset.CreateElement("block")
		block.CreateAttr("name", string(br.Block.ExternalName()))
		block.CreateAttr("is-open", boolAttr(br.Block.IsOpen))
		for _, f := range br.Block.Files() {
			file := block.CreateElement("file")
			file.CreateAttr("name", f.LFN)
			file.CreateAttr("bytes", uintAttr(f.Size))
		}
	}

	doc.Indent(2)
	out, _ := doc.WriteToBytes()
	return out
}

func boolAttr(b bool) string {
	if b {
		return "y"
	}
	return "n"
}

func uintAttr(n uint64) string {
	return strconv.FormatUint(n, 10)
}

// ParsedFile, ParsedBlock, and ParsedDataset mirror buildPayload's shape
// for the round-trip property (§8): parsing what buildPayload wrote must
// reproduce the same {dataset -> {block -> [file]}} content and is-open
// flags.
type ParsedFile struct {
	Name  string
	Bytes uint64
}

type ParsedBlock struct {
	Name   string
	IsOpen bool
	Files  []ParsedFile
}

type ParsedDataset struct {
	Name   string
	IsOpen bool
	Blocks []ParsedBlock
}

// ParsePayload parses one buildPayload document back into its dataset.
func ParsePayload(data []byte) (ParsedDataset, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return ParsedDataset{}, err
	}

	dsElem := doc.FindElement("//dataset")
	if dsElem == nil {
		return ParsedDataset{}, errMalformedPayload("missing dataset element")
	}

	ds := ParsedDataset{
		Name:   dsElem.SelectAttrValue("name", ""),
		IsOpen: dsElem.SelectAttrValue("is-open", "n") == "y",
	}
	for _, blockElem := range dsElem.SelectElements("block") {
		block := ParsedBlock{
			Name:   blockElem.SelectAttrValue("name", ""),
			IsOpen: blockElem.SelectAttrValue("is-open", "n") == "y",
		}
		for _, fileElem := range blockElem.SelectElements("file") {
			size, _ := strconv.ParseUint(fileElem.SelectAttrValue("bytes", "0"), 10, 64)
			block.Files = append(block.Files, ParsedFile{
				Name:  fileElem.SelectAttrValue("name", ""),
				Bytes: size,
			})
		}
		ds.Blocks = append(ds.Blocks, block)
	}
	return ds, nil
}

type errMalformedPayload string

func (e errMalformedPayload) Error() string { return string(e) }
