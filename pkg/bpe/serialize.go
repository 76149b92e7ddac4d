package bpe

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/ha1tch/yttmgo/pkg/utf8codec"
)

// modelMagic is the fixed 4-byte header identifying a yttmgo model file.
var modelMagic = [4]byte{'Y', 'T', 'T', 'M'}

// modelVersion is the only binary format version this package writes, and
// the only one it accepts on load.
const modelVersion uint32 = 1

// Save writes m to w in the binary format documented by the model file
// layout: magic, version, alphabet array, the four special ids, the ordered
// merge rules, and a canonical string table (length-prefixed UTF-8 per id).
func (m *Model) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.Write(modelMagic[:]); err != nil {
		return errors.Wrap(err, "bpe: writing magic")
	}
	if err := writeU32(bw, modelVersion); err != nil {
		return errors.Wrap(err, "bpe: writing version")
	}
	if err := writeU32(bw, uint32(len(m.Alphabet))); err != nil {
		return errors.Wrap(err, "bpe: writing alphabet length")
	}
	for _, cp := range m.Alphabet {
		if err := writeU32(bw, uint32(cp)); err != nil {
			return errors.Wrap(err, "bpe: writing alphabet entry")
		}
	}
	for _, id := range m.Specials.ids() {
		if err := writeU32(bw, uint32(id)); err != nil {
			return errors.Wrap(err, "bpe: writing special id")
		}
	}
	if err := writeU32(bw, uint32(len(m.Rules))); err != nil {
		return errors.Wrap(err, "bpe: writing rule count")
	}
	for _, rule := range m.Rules {
		if err := writeU32(bw, uint32(rule.Left)); err != nil {
			return errors.Wrap(err, "bpe: writing rule left")
		}
		if err := writeU32(bw, uint32(rule.Right)); err != nil {
			return errors.Wrap(err, "bpe: writing rule right")
		}
		if err := writeU32(bw, uint32(rule.Result)); err != nil {
			return errors.Wrap(err, "bpe: writing rule result")
		}
	}

	var charTable []byte
	for _, s := range m.idToSubword {
		b := []byte(s)
		charTable = append(charTable, u32Bytes(uint32(len(b)))...)
		charTable = append(charTable, b...)
	}
	if err := writeU32(bw, uint32(len(charTable))); err != nil {
		return errors.Wrap(err, "bpe: writing char table length")
	}
	if _, err := bw.Write(charTable); err != nil {
		return errors.Wrap(err, "bpe: writing char table")
	}

	return bw.Flush()
}

// SaveFile is a convenience wrapper that creates (or truncates) path and
// calls Save on it.
func (m *Model) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "bpe: creating model file")
	}
	defer f.Close()
	return m.Save(f)
}

// Load reads a model previously written by Save, validating the magic,
// version, id contiguity, and the merge-rule invariant
// subword[o] = subword[l] ⊕ subword[r] for every rule.
func Load(r io.Reader) (*Model, error) {
	br := bufio.NewReader(r)

	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, errors.Wrap(err, "bpe: reading magic")
	}
	if magic != modelMagic {
		return nil, ErrModelMagicMismatch
	}

	version, err := readU32(br)
	if err != nil {
		return nil, errors.Wrap(err, "bpe: reading version")
	}
	if version != modelVersion {
		return nil, errors.Wrapf(ErrModelVersionUnsupported, "version %d", version)
	}

	nAlphabet, err := readU32(br)
	if err != nil {
		return nil, errors.Wrap(err, "bpe: reading alphabet length")
	}
	alphabet := make([]utf8codec.CodePoint, nAlphabet)
	for i := range alphabet {
		cp, err := readU32(br)
		if err != nil {
			return nil, errors.Wrap(err, "bpe: reading alphabet entry")
		}
		alphabet[i] = utf8codec.CodePoint(cp)
	}

	specialIDs := make([]uint32, NumSpecials)
	for i := range specialIDs {
		id, err := readU32(br)
		if err != nil {
			return nil, errors.Wrap(err, "bpe: reading special id")
		}
		specialIDs[i] = id
	}
	specials := Specials{
		PadID: int(specialIDs[0]),
		UnkID: int(specialIDs[1]),
		BosID: int(specialIDs[2]),
		EosID: int(specialIDs[3]),
	}

	nRules, err := readU32(br)
	if err != nil {
		return nil, errors.Wrap(err, "bpe: reading rule count")
	}
	rules := make([]MergeRule, nRules)
	for i := range rules {
		left, err := readU32(br)
		if err != nil {
			return nil, errors.Wrap(err, "bpe: reading rule left")
		}
		right, err := readU32(br)
		if err != nil {
			return nil, errors.Wrap(err, "bpe: reading rule right")
		}
		result, err := readU32(br)
		if err != nil {
			return nil, errors.Wrap(err, "bpe: reading rule result")
		}
		rules[i] = MergeRule{Left: int(left), Right: int(right), Result: int(result)}
	}

	tableLen, err := readU32(br)
	if err != nil {
		return nil, errors.Wrap(err, "bpe: reading char table length")
	}
	table := make([]byte, tableLen)
	if _, err := io.ReadFull(br, table); err != nil {
		return nil, errors.Wrap(err, "bpe: reading char table")
	}
	storedStrings, err := decodeCharTable(table)
	if err != nil {
		return nil, err
	}

	model := &Model{
		Alphabet: alphabet,
		Specials: specials,
		Rules:    rules,
	}
	if err := model.finalize(); err != nil {
		return nil, err
	}

	if len(storedStrings) != len(model.idToSubword) {
		return nil, errors.Wrapf(ErrModelCorrupt,
			"char table has %d entries, expected %d", len(storedStrings), len(model.idToSubword))
	}
	for id, want := range storedStrings {
		if model.idToSubword[id] != want {
			return nil, errors.Wrapf(ErrModelCorrupt,
				"id %d: stored subword %q does not match derived subword %q", id, want, model.idToSubword[id])
		}
	}

	return model, nil
}

// LoadFile is a convenience wrapper that opens path and calls Load on it.
func LoadFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "bpe: opening model file")
	}
	defer f.Close()
	return Load(f)
}

func decodeCharTable(table []byte) ([]string, error) {
	var out []string
	pos := 0
	for pos < len(table) {
		if pos+4 > len(table) {
			return nil, errors.Wrap(ErrModelCorrupt, "char table truncated (length prefix)")
		}
		n := binary.LittleEndian.Uint32(table[pos : pos+4])
		pos += 4
		if pos+int(n) > len(table) {
			return nil, errors.Wrap(ErrModelCorrupt, "char table truncated (string body)")
		}
		out = append(out, string(table[pos:pos+int(n)]))
		pos += int(n)
	}
	return out, nil
}

func writeU32(w io.Writer, v uint32) error {
	_, err := w.Write(u32Bytes(v))
	return err
}

func u32Bytes(v uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return buf
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}
