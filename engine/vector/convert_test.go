package vector

import (
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
)

func TestToPoint(t *testing.T) {
	r := Record{
		ID:        "0d3cd3de-8a4c-49c7-a0a3-7b4f0c2aabf1",
		Embedding: []float32{0.1, 0.2},
		Payload: map[string]any{
			"content":     "chunk text",
			"document_id": "doc-1",
			"chunk_index": 3,
			"start_char":  int64(120),
			"relevant":    true,
			"weight":      0.5,
		},
	}
	p := toPoint(r)

	if p.GetId().GetUuid() != r.ID {
		t.Errorf("id = %s", p.GetId().GetUuid())
	}
	if got := p.GetVectors().GetVector().GetData(); len(got) != 2 || got[1] != 0.2 {
		t.Errorf("vector = %v", got)
	}
	pl := p.GetPayload()
	if pl["content"].GetStringValue() != "chunk text" {
		t.Errorf("content = %v", pl["content"])
	}
	if pl["chunk_index"].GetIntegerValue() != 3 {
		t.Errorf("chunk_index = %v", pl["chunk_index"])
	}
	if pl["start_char"].GetIntegerValue() != 120 {
		t.Errorf("start_char = %v", pl["start_char"])
	}
	if !pl["relevant"].GetBoolValue() {
		t.Errorf("relevant = %v", pl["relevant"])
	}
	if pl["weight"].GetDoubleValue() != 0.5 {
		t.Errorf("weight = %v", pl["weight"])
	}
}

func TestToHit(t *testing.T) {
	p := &pb.ScoredPoint{
		Id:    &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "chunk-1"}},
		Score: 0.87,
		Payload: map[string]*pb.Value{
			"content":        {Kind: &pb.Value_StringValue{StringValue: "exercise daily"}},
			"document_id":    {Kind: &pb.Value_StringValue{StringValue: "doc-9"}},
			"chunk_index":    {Kind: &pb.Value_IntegerValue{IntegerValue: 2}},
			"source":         {Kind: &pb.Value_StringValue{StringValue: "research_paper"}},
			"source_url":     {Kind: &pb.Value_StringValue{StringValue: "https://example.org"}},
			"document_title": {Kind: &pb.Value_StringValue{StringValue: "VO2 max study"}},
			"chunk_length":   {Kind: &pb.Value_IntegerValue{IntegerValue: 14}},
		},
	}
	h := toHit(p)

	if h.ID != "chunk-1" || h.Score != 0.87 {
		t.Errorf("hit = %+v", h)
	}
	if h.Content != "exercise daily" || h.DocumentID != "doc-9" || h.ChunkIndex != 2 {
		t.Errorf("well-known fields not lifted: %+v", h)
	}
	if h.Source != "research_paper" || h.SourceURL != "https://example.org" {
		t.Errorf("source fields not lifted: %+v", h)
	}
	if h.Meta["document_title"] != "VO2 max study" {
		t.Errorf("meta title = %q", h.Meta["document_title"])
	}
	if h.Meta["chunk_length"] != "14" {
		t.Errorf("meta chunk_length = %q", h.Meta["chunk_length"])
	}
}

func TestFieldMatch(t *testing.T) {
	c := fieldMatch("document_id", "doc-4")
	field := c.GetField()
	if field == nil {
		t.Fatal("condition is not a field condition")
	}
	if field.GetKey() != "document_id" {
		t.Errorf("key = %q", field.GetKey())
	}
	if field.GetMatch().GetKeyword() != "doc-4" {
		t.Errorf("keyword = %q", field.GetMatch().GetKeyword())
	}
}

func TestValueString(t *testing.T) {
	cases := []struct {
		val  *pb.Value
		want string
	}{
		{&pb.Value{Kind: &pb.Value_StringValue{StringValue: "s"}}, "s"},
		{&pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: 42}}, "42"},
		{&pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: 1.5}}, "1.5"},
		{&pb.Value{Kind: &pb.Value_BoolValue{BoolValue: true}}, "true"},
	}
	for _, tc := range cases {
		if got := valueString(tc.val); got != tc.want {
			t.Errorf("valueString(%v) = %q, want %q", tc.val, got, tc.want)
		}
	}
}
