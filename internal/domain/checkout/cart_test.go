package checkout

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartItem_UnmarshalKnownType(t *testing.T) {
	var item CartItem
	err := json.Unmarshal([]byte(`{
		"type": "product",
		"quantity": 2,
		"product_variant_id": "v1",
		"dedication": {"name": "Asha"}
	}`), &item)
	require.NoError(t, err)

	assert.Equal(t, ItemProduct, item.Type)
	assert.Equal(t, 2, item.Quantity)
	assert.Equal(t, "v1", item.VariantID)
	require.NotNil(t, item.Dedication)
	assert.Equal(t, "Asha", item.Dedication.Name)
	assert.Nil(t, item.Raw, "fully-typed payloads leave Raw empty")
}

func TestCartItem_UnmarshalUnknownFields(t *testing.T) {
	var item CartItem
	err := json.Unmarshal([]byte(`{
		"type": "gift_card",
		"quantity": 1,
		"name": "Gift Card",
		"value": 500
	}`), &item)
	require.NoError(t, err)

	assert.Equal(t, ItemType("gift_card"), item.Type)
	assert.Equal(t, 1, item.Quantity)
	require.NotNil(t, item.Raw)
	assert.Equal(t, "Gift Card", item.Raw["name"])
	assert.Equal(t, float64(500), item.Raw["value"])
	assert.NotContains(t, item.Raw, "type")
	assert.NotContains(t, item.Raw, "quantity")
}

func TestCartItem_UnknownTypeSnapshotsRawPayload(t *testing.T) {
	var item CartItem
	err := json.Unmarshal([]byte(`{"type":"gift_card","quantity":1,"name":"Gift Card"}`), &item)
	require.NoError(t, err)

	s := NewSnapshotter(testCatalog())
	snap, err := s.Snapshot(context.Background(), item)
	require.NoError(t, err)

	assert.Equal(t, "Gift Card", snap.Raw["name"])
	assert.Equal(t, "Gift Card", snap.ItemName())
}
