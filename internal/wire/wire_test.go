package wire

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeProfile(t *testing.T) {
	in := Entry{
		Kind:     KindProfile,
		Epoch:    7,
		StoredAt: 1712345678901,
		Payload:  []byte(`{"patient_id":"AB12C"}`),
	}
	b := Encode(in)

	out, err := Decode(b, KindProfile)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Epoch != in.Epoch || out.StoredAt != in.StoredAt || out.Negative {
		t.Fatalf("header mismatch: %+v", out)
	}
	if !bytes.Equal(out.Payload, in.Payload) {
		t.Fatalf("payload mismatch: %q", out.Payload)
	}
}

func TestEncodeDecodeNegativeAttachment(t *testing.T) {
	in := Entry{Kind: KindAttachment, Epoch: 1, StoredAt: 42, Negative: true}
	out, err := Decode(Encode(in), KindAttachment)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !out.Negative {
		t.Fatalf("negative flag lost")
	}
	if len(out.Payload) != 0 {
		t.Fatalf("sentinel entry should carry no payload, got %q", out.Payload)
	}
}

func TestDecodeKindMismatch(t *testing.T) {
	b := Encode(Entry{Kind: KindProfile, Epoch: 1, StoredAt: 1})
	if _, err := Decode(b, KindAttachment); err != ErrCorrupt {
		t.Fatalf("expected ErrCorrupt on kind mismatch, got %v", err)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte("x"),
		[]byte("not-wire-format-at-all"),
		Encode(Entry{Kind: KindProfile, StoredAt: 1})[:10], // truncated header
	}
	for i, b := range cases {
		if _, err := Decode(b, KindProfile); err != ErrCorrupt {
			t.Fatalf("case %d: expected ErrCorrupt, got %v", i, err)
		}
	}
}

func TestDecodeRejectsOversizedLength(t *testing.T) {
	b := Encode(Entry{Kind: KindProfile, Epoch: 1, StoredAt: 1, Payload: []byte("abcdef")})
	// Chop payload bytes so the declared length exceeds what remains.
	if _, err := Decode(b[:len(b)-3], KindProfile); err != ErrCorrupt {
		t.Fatalf("expected ErrCorrupt on short payload, got %v", err)
	}
}
