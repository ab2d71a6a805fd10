package compiler

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// FormatVersion is the current program file version. Increment it when the
// encoding changes incompatibly.
const FormatVersion uint16 = 1

// FormatMagic identifies an encoded program.
const FormatMagic = "TVM"

// programFile is the on-disk envelope of an encoded Program.
type programFile struct {
	Magic     string        `cbor:"1,keyasint"`
	Version   uint16        `cbor:"2,keyasint"`
	Code      []Instruction `cbor:"3,keyasint"`
	Positions []Position    `cbor:"4,keyasint,omitempty"`
}

var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
)

// maxInstructions bounds the arrays Decode accepts. It is the largest limit
// the cbor package allows, so anything Encode writes can be read back.
const maxInstructions = 2147483647

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("compiler: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em

	dm, err := cbor.DecOptions{MaxArrayElements: maxInstructions}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("compiler: failed to create CBOR dec mode: %v", err))
	}
	cborDecMode = dm
}

// Encode serializes p to CBOR.
func Encode(p *Program) ([]byte, error) {
	return cborEncMode.Marshal(programFile{
		Magic:     FormatMagic,
		Version:   FormatVersion,
		Code:      p.Code,
		Positions: p.Positions,
	})
}

// Decode deserializes a program produced by Encode and validates its jump
// targets, so a decoded program is as safe to run as a freshly compiled one.
func Decode(data []byte) (*Program, error) {
	var f programFile
	if err := cborDecMode.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("compiler: decode program: %w", err)
	}
	if f.Magic != FormatMagic {
		return nil, fmt.Errorf("compiler: invalid program magic %q", f.Magic)
	}
	if f.Version == 0 {
		return nil, fmt.Errorf("compiler: program has no format version")
	}
	if f.Version > FormatVersion {
		return nil, fmt.Errorf("compiler: program version %d is newer than supported version %d", f.Version, FormatVersion)
	}
	p := &Program{Code: f.Code, Positions: f.Positions}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("compiler: invalid program: %w", err)
	}
	return p, nil
}
