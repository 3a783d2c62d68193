package wbxml_test

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/dedovmosol/iwomail/internal/wbxml"
)

func TestRoundTrip_FolderSync(t *testing.T) {
	req := wbxml.NewNode(wbxml.PageFolderHierarchy, wbxml.FHFolderSync).Add(
		wbxml.NewTextNode(wbxml.PageFolderHierarchy, wbxml.FHSyncKey, "0"),
	)

	data, err := wbxml.Encode(req)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := wbxml.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(got, req) {
		t.Errorf("round trip mismatch:\ngot:\n%s\nwant:\n%s", got, req)
	}
}

func TestRoundTrip_CrossPageSync(t *testing.T) {
	// A Sync request spans AirSync, AirSyncBase, and Email pages.
	req := wbxml.NewNode(wbxml.PageAirSync, wbxml.AirSync).Add(
		wbxml.NewNode(wbxml.PageAirSync, wbxml.AirCollections).Add(
			wbxml.NewNode(wbxml.PageAirSync, wbxml.AirCollection).Add(
				wbxml.NewTextNode(wbxml.PageAirSync, wbxml.AirSyncKey, "52341"),
				wbxml.NewTextNode(wbxml.PageAirSync, wbxml.AirCollectionID, "5"),
				wbxml.NewNode(wbxml.PageAirSync, wbxml.AirGetChanges),
				wbxml.NewNode(wbxml.PageAirSync, wbxml.AirOptions).Add(
					wbxml.NewNode(wbxml.PageAirSyncBase, wbxml.ASBBodyPreference).Add(
						wbxml.NewTextNode(wbxml.PageAirSyncBase, wbxml.ASBType, "2"),
						wbxml.NewTextNode(wbxml.PageAirSyncBase, wbxml.ASBTruncationSize, "51200"),
					),
				),
				wbxml.NewNode(wbxml.PageAirSync, wbxml.AirCommands).Add(
					wbxml.NewNode(wbxml.PageAirSync, wbxml.AirChange).Add(
						wbxml.NewTextNode(wbxml.PageAirSync, wbxml.AirServerID, "5:12"),
						wbxml.NewNode(wbxml.PageAirSync, wbxml.AirApplicationData).Add(
							wbxml.NewTextNode(wbxml.PageEmail, wbxml.EmailRead, "1"),
						),
					),
				),
			),
		),
	)

	data, err := wbxml.Encode(req)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := wbxml.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(got, req) {
		t.Errorf("round trip mismatch:\ngot:\n%s\nwant:\n%s", got, req)
	}
}

func TestRoundTrip_Opaque(t *testing.T) {
	blob := bytes.Repeat([]byte{0x00, 0xFF, 0x42}, 100) // >127 forces multi-byte length
	req := wbxml.NewNode(wbxml.PageComposeMail, wbxml.CMSendMail).Add(
		wbxml.NewTextNode(wbxml.PageComposeMail, wbxml.CMClientID, "abc-123"),
		wbxml.NewOpaqueNode(wbxml.PageComposeMail, wbxml.CMMime, blob),
	)

	data, err := wbxml.Encode(req)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := wbxml.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(got.Child(wbxml.PageComposeMail, wbxml.CMMime).Opaque, blob) {
		t.Error("opaque payload corrupted in round trip")
	}
}

func TestRoundTrip_AllCommandRoots(t *testing.T) {
	roots := []*wbxml.Node{
		wbxml.NewNode(wbxml.PageAirSync, wbxml.AirSync),
		wbxml.NewNode(wbxml.PageFolderHierarchy, wbxml.FHFolderSync),
		wbxml.NewNode(wbxml.PageFolderHierarchy, wbxml.FHFolderCreate),
		wbxml.NewNode(wbxml.PageProvision, wbxml.ProvProvision),
		wbxml.NewNode(wbxml.PageItemOperations, wbxml.IOItemOperations),
		wbxml.NewNode(wbxml.PageComposeMail, wbxml.CMSendMail),
	}
	for _, root := range roots {
		root.Add(wbxml.NewTextNode(root.Page, root.Tag+1, "x"))
		data, err := wbxml.Encode(root)
		if err != nil {
			t.Fatalf("Encode %s: %v", wbxml.TagName(root.Page, root.Tag), err)
		}
		got, err := wbxml.Decode(data)
		if err != nil {
			t.Fatalf("Decode %s: %v", wbxml.TagName(root.Page, root.Tag), err)
		}
		if !reflect.DeepEqual(got, root) {
			t.Errorf("%s: round trip mismatch", wbxml.TagName(root.Page, root.Tag))
		}
	}
}

func TestDecode_MalformedStreams(t *testing.T) {
	valid, err := wbxml.Encode(wbxml.NewNode(wbxml.PageFolderHierarchy, wbxml.FHFolderSync).Add(
		wbxml.NewTextNode(wbxml.PageFolderHierarchy, wbxml.FHSyncKey, "1"),
	))
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"header only", valid[:4]},
		{"truncated mid element", valid[:len(valid)-3]},
		{"unterminated string", append(append([]byte{}, valid[:len(valid)-2]...), 'x')},
		{"unknown code page", []byte{0x03, 0x01, 0x6A, 0x00, 0x00, 0x30, 0x45, 0x01}},
		{"string table overrun", []byte{0x03, 0x01, 0x6A, 0x7F}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := wbxml.Decode(tc.data)
			if err == nil {
				t.Fatal("expected decode error")
			}
			var de *wbxml.DecodeError
			if !errors.As(err, &de) {
				t.Errorf("error %v is not a DecodeError", err)
			}
		})
	}
}

func TestDecode_MultiByteLength(t *testing.T) {
	// 300-byte opaque exercises the two-byte length form on decode.
	blob := bytes.Repeat([]byte{0xAB}, 300)
	data, err := wbxml.Encode(wbxml.NewOpaqueNode(wbxml.PageProvision, wbxml.ProvData, blob))
	if err != nil {
		t.Fatal(err)
	}
	got, err := wbxml.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got.Opaque) != 300 {
		t.Errorf("opaque length = %d, want 300", len(got.Opaque))
	}
}

func TestNode_ChildHelpers(t *testing.T) {
	root := wbxml.NewNode(wbxml.PageAirSync, wbxml.AirSync).Add(
		wbxml.NewTextNode(wbxml.PageAirSync, wbxml.AirStatus, "1"),
		wbxml.NewNode(wbxml.PageAirSync, wbxml.AirCollections).Add(
			wbxml.NewNode(wbxml.PageAirSync, wbxml.AirCollection),
			wbxml.NewNode(wbxml.PageAirSync, wbxml.AirCollection),
		),
	)

	if got := root.ChildText(wbxml.PageAirSync, wbxml.AirStatus); got != "1" {
		t.Errorf("ChildText = %q, want %q", got, "1")
	}
	cols := root.Child(wbxml.PageAirSync, wbxml.AirCollections).
		ChildrenOf(wbxml.PageAirSync, wbxml.AirCollection)
	if len(cols) != 2 {
		t.Errorf("ChildrenOf = %d nodes, want 2", len(cols))
	}
	if root.Child(wbxml.PageEmail, wbxml.EmailSubject) != nil {
		t.Error("Child should return nil for absent tag")
	}
}
