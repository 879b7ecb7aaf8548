package menusync

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"menuboard/internal/menu/models"
	"menuboard/internal/menu/push"
	"menuboard/pkg/platform/sentinel"
)

// =============================================================================
// Merge Engine Test Suite
// =============================================================================
// Justification for unit tests: the merge rules are pure functions over the
// projection and carry the copy-on-write contract that change detection in
// every view relies on. Scenarios here mirror the catalog event semantics.

type MergeSuite struct {
	suite.Suite
}

func TestMergeSuite(t *testing.T) {
	suite.Run(t, new(MergeSuite))
}

func item(id int64, category, name string, extras ...models.Extra) models.Item {
	return models.Item{ID: id, Name: name, Category: category, Price: decimal.NewFromInt(10), Extras: extras}
}

func extra(id int64, typ, name string) models.Extra {
	return models.Extra{ID: id, Type: typ, Name: name, Price: decimal.NewFromInt(1)}
}

func itemIDs(items []models.Item) []int64 {
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	return ids
}

func (s *MergeSuite) TestItemUpserted() {
	s.Run("new id in a tracked category is appended", func() {
		p := models.Projection{"Sandwiches": {item(2, "Sandwiches", "Club")}}

		next := ApplyItemUpserted(p, item(3, "Sandwiches", "New Sub"))

		s.Equal([]int64{2, 3}, itemIDs(next["Sandwiches"]))
		s.Equal("New Sub", next["Sandwiches"][1].Name)
		s.Len(p["Sandwiches"], 1, "input projection must not change")
	})

	s.Run("new id in an untracked category is dropped", func() {
		p := models.Projection{"Sandwiches": {item(2, "Sandwiches", "Club")}}

		next := ApplyItemUpserted(p, item(3, "Desserts", "Tiramisu"))

		s.True(next.Same(p))
	})

	s.Run("known id is replaced in place", func() {
		p := models.Projection{"Burgers": {item(1, "Burgers", "Classic"), item(2, "Burgers", "Bacon"), item(3, "Burgers", "Veggie")}}

		next := ApplyItemUpserted(p, item(2, "Burgers", "Double Bacon"))

		s.Equal([]int64{1, 2, 3}, itemIDs(next["Burgers"]))
		s.Equal("Double Bacon", next["Burgers"][1].Name)
		s.Equal("Bacon", p["Burgers"][1].Name)
	})

	s.Run("known id keeps its bucket when its category changes", func() {
		p := models.Projection{
			"Burgers":    {item(1, "Burgers", "Classic")},
			"Sandwiches": {item(2, "Sandwiches", "Club")},
		}

		next := ApplyItemUpserted(p, item(1, "Sandwiches", "Classic Sub"))

		s.Equal([]int64{1}, itemIDs(next["Burgers"]))
		s.Equal("Classic Sub", next["Burgers"][0].Name)
		s.Equal([]int64{2}, itemIDs(next["Sandwiches"]))
	})

	s.Run("distinct ids land once each in first-seen order", func() {
		p := models.Projection{"Pizza": {}}
		for _, id := range []int64{5, 1, 4, 1, 5, 2} {
			p = ApplyItemUpserted(p, item(id, "Pizza", "v"))
		}
		s.Equal([]int64{5, 1, 4, 2}, itemIDs(p["Pizza"]))
	})

	s.Run("untouched buckets are shared", func() {
		p := models.Projection{
			"Burgers": {item(1, "Burgers", "Classic")},
			"Drinks":  {item(7, "Drinks", "Cola")},
		}

		next := ApplyItemUpserted(p, item(1, "Burgers", "Classic XL"))

		s.False(next.Same(p))
		s.Same(&p["Drinks"][0], &next["Drinks"][0])
		s.NotSame(&p["Burgers"][0], &next["Burgers"][0])
	})
}

func (s *MergeSuite) TestItemRemoved() {
	p := models.Projection{
		"Burgers": {item(1, "Burgers", "Classic"), item(2, "Burgers", "Bacon")},
		"Drinks":  {item(7, "Drinks", "Cola")},
	}

	s.Run("absent id is a no-op", func() {
		next := ApplyItemRemoved(p, 99)
		s.True(next.Same(p))
	})

	s.Run("removes from every bucket", func() {
		next := ApplyItemRemoved(p, 1)
		s.Equal([]int64{2}, itemIDs(next["Burgers"]))
		s.Equal([]int64{1, 2}, itemIDs(p["Burgers"]))
		s.Same(&p["Drinks"][0], &next["Drinks"][0])
	})

	s.Run("applying twice equals applying once", func() {
		once := ApplyItemRemoved(p, 2)
		twice := ApplyItemRemoved(once, 2)
		s.Equal(once, twice)
		s.True(twice.Same(once))
	})
}

func (s *MergeSuite) TestExtraUpserted() {
	s.Run("replaces the extra in place on the owning item", func() {
		p := models.Projection{
			"Burgers": {item(1, "Burgers", "Classic", extra(9, "CHEESE", "Extra"))},
			"Drinks":  {item(7, "Drinks", "Cola")},
		}

		next := ApplyExtraUpserted(p, extra(9, "CHEESE", "Double Extra"))

		extras := next["Burgers"][0].Extras
		s.Require().Len(extras, 1)
		s.Equal(int64(9), extras[0].ID)
		s.Equal("CHEESE", extras[0].Type)
		s.Equal("Double Extra", extras[0].Name)
		s.Equal("Extra", p["Burgers"][0].Extras[0].Name)
		s.Same(&p["Drinks"][0], &next["Drinks"][0])
	})

	s.Run("preserves position among siblings", func() {
		p := models.Projection{"Panini": {item(1, "Panini", "Base",
			extra(1, "CARNE", "Pollo"), extra(2, "FORMAGGI", "Brie"), extra(3, "CONTORNO", "Rucola"))}}

		next := ApplyExtraUpserted(p, extra(2, "FORMAGGI", "Gorgonzola"))

		names := []string{}
		for _, e := range next["Panini"][0].Extras {
			names = append(names, e.Name)
		}
		s.Equal([]string{"Pollo", "Gorgonzola", "Rucola"}, names)
	})

	s.Run("extra carried by no item is dropped", func() {
		p := models.Projection{
			"Burgers": {item(1, "Burgers", "Classic", extra(9, "CHEESE", "Extra"))},
			"Drinks":  {item(7, "Drinks", "Cola")},
		}

		next := ApplyExtraUpserted(p, extra(404, "CHEESE", "Ghost"))

		s.True(next.Same(p))
		s.Equal("Extra", next["Burgers"][0].Extras[0].Name)
	})
}

func (s *MergeSuite) TestExtraRemoved() {
	p := models.Projection{
		"Burgers": {
			item(1, "Burgers", "Classic", extra(9, "CHEESE", "Extra"), extra(10, "SAUCE", "Mayo")),
			item(2, "Burgers", "Bacon"),
		},
	}

	s.Run("removes from the owning item only", func() {
		next := ApplyExtraRemoved(p, 9)

		s.Len(next["Burgers"][0].Extras, 1)
		s.Equal(int64(10), next["Burgers"][0].Extras[0].ID)
		s.Len(p["Burgers"][0].Extras, 2)
	})

	s.Run("absent extra is a no-op", func() {
		s.True(ApplyExtraRemoved(p, 77).Same(p))
	})
}

func (s *MergeSuite) TestApplyDecoding() {
	p := models.Projection{"Burgers": {item(1, "Burgers", "Classic", extra(9, "CHEESE", "Extra"))}}

	s.Run("item upsert from wire payload", func() {
		payload := json.RawMessage(`{"id":1,"name":"Classic","description":"","price":"11.50","category":"Burgers","extras":[]}`)

		next, err := Apply(p, push.KindItemUpserted, payload)

		s.Require().NoError(err)
		s.True(decimal.RequireFromString("11.5").Equal(next["Burgers"][0].Price))
	})

	s.Run("delete accepts bare and wrapped ids", func() {
		for _, payload := range []string{`1`, `"1"`, `{"id":1}`, ` 1 `} {
			next, err := Apply(p, push.KindItemRemoved, json.RawMessage(payload))
			s.Require().NoError(err, payload)
			s.Empty(next["Burgers"], payload)
		}
	})

	s.Run("extra delete payload", func() {
		next, err := Apply(p, push.KindExtraRemoved, json.RawMessage(`9`))
		s.Require().NoError(err)
		s.Empty(next["Burgers"][0].Extras)
	})

	s.Run("zero is a valid entity id", func() {
		zero := models.Projection{"Burgers": {item(0, "Burgers", "House Special")}}

		next, err := Apply(zero, push.KindItemUpserted,
			json.RawMessage(`{"id":0,"name":"House Special XL","category":"Burgers","price":"12"}`))
		s.Require().NoError(err)
		s.Require().Len(next["Burgers"], 1)
		s.Equal("House Special XL", next["Burgers"][0].Name)
	})

	s.Run("malformed payloads leave the projection alone", func() {
		cases := []struct {
			kind    push.Kind
			payload string
		}{
			{push.KindItemUpserted, `{"id":`},
			{push.KindItemUpserted, `{"name":"no id"}`},
			{push.KindItemUpserted, `{"id":null,"name":"null id"}`},
			{push.KindExtraUpserted, `[1,2]`},
			{push.KindItemRemoved, `"abc"`},
			{push.KindExtraRemoved, `{"id":null}`},
			{push.KindExtraRemoved, `true`},
			{push.Kind("orderCreated"), `{}`},
		}
		for _, tc := range cases {
			next, err := Apply(p, tc.kind, json.RawMessage(tc.payload))
			s.ErrorIs(err, sentinel.ErrBadData, tc.payload)
			s.True(next.Same(p), tc.payload)
		}
	})
}
