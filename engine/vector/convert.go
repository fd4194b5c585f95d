package vector

import (
	"fmt"
	"strconv"

	pb "github.com/qdrant/go-client/qdrant"
)

// toPoint builds the Qdrant point for a record.
func toPoint(r Record) *pb.PointStruct {
	payload := make(map[string]*pb.Value, len(r.Payload))
	for k, v := range r.Payload {
		payload[k] = toValue(v)
	}
	return &pb.PointStruct{
		Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: r.ID}},
		Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: r.Embedding}}},
		Payload: payload,
	}
}

// fieldMatch builds an exact keyword-match filter condition on a payload
// field.
func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

func toValue(v any) *pb.Value {
	switch tv := v.(type) {
	case string:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: tv}}
	case int:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(tv)}}
	case int64:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: tv}}
	case float64:
		return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: tv}}
	case bool:
		return &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: tv}}
	default:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: fmt.Sprint(tv)}}
	}
}

// toHit flattens a scored point, lifting the well-known payload fields and
// collecting the rest into Meta.
func toHit(p *pb.ScoredPoint) Hit {
	h := Hit{
		ID:    p.GetId().GetUuid(),
		Score: p.GetScore(),
		Meta:  make(map[string]string),
	}
	for k, v := range p.GetPayload() {
		switch k {
		case "content":
			h.Content = v.GetStringValue()
		case "document_id":
			h.DocumentID = v.GetStringValue()
		case "chunk_index":
			h.ChunkIndex = int(v.GetIntegerValue())
		case "source":
			h.Source = v.GetStringValue()
		case "source_url":
			h.SourceURL = v.GetStringValue()
		default:
			h.Meta[k] = valueString(v)
		}
	}
	return h
}

func valueString(v *pb.Value) string {
	switch kind := v.GetKind().(type) {
	case *pb.Value_StringValue:
		return kind.StringValue
	case *pb.Value_IntegerValue:
		return strconv.FormatInt(kind.IntegerValue, 10)
	case *pb.Value_DoubleValue:
		return strconv.FormatFloat(kind.DoubleValue, 'f', -1, 64)
	case *pb.Value_BoolValue:
		return strconv.FormatBool(kind.BoolValue)
	default:
		return v.String()
	}
}
