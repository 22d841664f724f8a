package reconciler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vetdesk-workflow/internal/domain"
)

var testCatalog = MapCatalog{
	5:  {ID: 5, Name: "Рентген", Price: 1200},
	8:  {ID: 8, Name: "Амоксициллин", Price: 300},
	12: {ID: 12, Name: "УЗИ", Price: 900},
}

func TestBuildPlan_MinimalDiff(t *testing.T) {
	// 原始：两行；草稿：行1未动、行2删除、新增一行
	original := []Row{
		{ServerID: 1, RefID: 12, Quantity: 2, Name: "УЗИ"},
		{ServerID: 2, RefID: 5, Quantity: 1, Name: "Рентген"},
	}
	draft := []DraftRow{
		{LocalID: "a", ServerID: 1, RefID: 12, Quantity: 2},
		{LocalID: "b", ServerID: 2, RefID: 5, Quantity: 1, Deleted: true},
		{LocalID: "c", New: true, RefID: 5, Quantity: 3},
	}

	plan := BuildPlan(Services, 10, original, draft, testCatalog)

	require.Len(t, plan.Ops, 2)
	assert.Empty(t, plan.Skipped)

	del := plan.Ops[0]
	assert.Equal(t, OpDelete, del.Kind)
	assert.Equal(t, "service-usages/2/", del.Path())

	create := plan.Ops[1]
	assert.Equal(t, OpCreate, create.Kind)
	assert.Equal(t, "service-usages/", create.Path())
	assert.Equal(t, int64(10), create.Payload["medical_card"])
	assert.Equal(t, int64(5), create.Payload["service"])
	assert.Equal(t, 3, create.Payload["quantity"])
	// 名称快照在规划时刻从目录解析
	assert.Equal(t, "Рентген", create.Payload["service_name"])
}

func TestBuildPlan_NewDeletedRowProducesNothing(t *testing.T) {
	draft := []DraftRow{
		{LocalID: "a", New: true, Deleted: true, RefID: 5, Quantity: 1},
	}
	plan := BuildPlan(Services, 10, nil, draft, testCatalog)

	assert.Empty(t, plan.Ops)
	assert.Empty(t, plan.Skipped)
}

func TestBuildPlan_NewRowRequiredFields(t *testing.T) {
	draft := []DraftRow{
		{LocalID: "no-ref", New: true, Quantity: 2},
		{LocalID: "no-qty", New: true, RefID: 5},
		{LocalID: "ok", New: true, RefID: 5, Quantity: 1},
	}
	plan := BuildPlan(Services, 10, nil, draft, testCatalog)

	require.Len(t, plan.Ops, 1)
	assert.Equal(t, "ok", plan.Ops[0].LocalID)

	require.Len(t, plan.Skipped, 2)
	assert.Equal(t, "no-ref", plan.Skipped[0].LocalID)
	assert.Equal(t, "no-qty", plan.Skipped[1].LocalID)
}

func TestBuildPlan_MedicineDosageRequired(t *testing.T) {
	draft := []DraftRow{
		{LocalID: "no-dosage", New: true, RefID: 8, Quantity: 1},
		{LocalID: "ok", New: true, RefID: 8, Quantity: 1, Detail: "5 мг 2 раза в день"},
	}
	plan := BuildPlan(Medicines, 10, nil, draft, testCatalog)

	require.Len(t, plan.Ops, 1)
	op := plan.Ops[0]
	assert.Equal(t, "ok", op.LocalID)
	assert.Equal(t, "medicine-usages/", op.Path())
	assert.Equal(t, "5 мг 2 раза в день", op.Payload["dosage"])
	assert.Equal(t, "Амоксициллин", op.Payload["medicine_name"])

	require.Len(t, plan.Skipped, 1)
	assert.Equal(t, "missing dosage", plan.Skipped[0].Reason)
}

func TestBuildPlan_DirtyRowPatchesOnlyChangedFields(t *testing.T) {
	original := []Row{
		{ServerID: 1, RefID: 12, Quantity: 2, Detail: "до еды", Name: "УЗИ"},
	}

	// 只改数量
	draft := []DraftRow{
		{LocalID: "a", ServerID: 1, RefID: 12, Quantity: 4, Detail: "до еды", Dirty: true},
	}
	plan := BuildPlan(Services, 10, original, draft, testCatalog)
	require.Len(t, plan.Ops, 1)
	assert.Equal(t, OpUpdate, plan.Ops[0].Kind)
	assert.Equal(t, "service-usages/1/", plan.Ops[0].Path())
	assert.Equal(t, map[string]any{"quantity": 4}, plan.Ops[0].Payload)

	// 换了目录引用：带新引用和重新解析的名称快照
	draft = []DraftRow{
		{LocalID: "a", ServerID: 1, RefID: 5, Quantity: 2, Detail: "до еды", Dirty: true},
	}
	plan = BuildPlan(Services, 10, original, draft, testCatalog)
	require.Len(t, plan.Ops, 1)
	assert.Equal(t, map[string]any{
		"service":      int64(5),
		"service_name": "Рентген",
	}, plan.Ops[0].Payload)

	// dirty 标记但没有实际变化：不发请求
	draft = []DraftRow{
		{LocalID: "a", ServerID: 1, RefID: 12, Quantity: 2, Detail: "до еды", Dirty: true},
	}
	plan = BuildPlan(Services, 10, original, draft, testCatalog)
	assert.Empty(t, plan.Ops)
}

func TestBuildPlan_UntouchedRowsProduceNoOps(t *testing.T) {
	original := []Row{
		{ServerID: 1, RefID: 12, Quantity: 2},
		{ServerID: 2, RefID: 5, Quantity: 1},
	}
	draft := HydrateDrafts(original)

	plan := BuildPlan(Services, 10, original, draft, testCatalog)
	assert.Empty(t, plan.Ops)
	assert.Empty(t, plan.Skipped)
}

func TestHydrateDrafts_AssignsLocalIDs(t *testing.T) {
	rows := []Row{
		{ServerID: 1, RefID: 12, Quantity: 2, Detail: "x"},
	}
	drafts := HydrateDrafts(rows)
	require.Len(t, drafts, 1)

	assert.NotEmpty(t, drafts[0].LocalID)
	assert.Equal(t, int64(1), drafts[0].ServerID)
	assert.False(t, drafts[0].New)
	assert.False(t, drafts[0].Dirty)
	assert.False(t, drafts[0].Deleted)

	other := NewDraftRow()
	assert.True(t, other.New)
	assert.NotEqual(t, drafts[0].LocalID, other.LocalID)
}

func TestRowsFromUsages_FoldServerShapes(t *testing.T) {
	services := RowsFromServiceUsages([]domain.ServiceUsage{
		{ID: 1, Service: domain.Reference{Kind: domain.RefID, ID: 12}, Quantity: 2, Description: "d", ServiceName: "УЗИ"},
	})
	require.Len(t, services, 1)
	assert.Equal(t, Row{ServerID: 1, RefID: 12, Quantity: 2, Detail: "d", Name: "УЗИ"}, services[0])

	medicines := RowsFromMedicineUsages([]domain.MedicineUsage{
		{ID: 2, Medicine: domain.Reference{Kind: domain.RefID, ID: 8}, Quantity: 1, Dosage: "5 мг", MedicineName: "Амоксициллин"},
	})
	require.Len(t, medicines, 1)
	assert.Equal(t, "5 мг", medicines[0].Detail)

	feeds := RowsFromFeedUsages([]domain.FeedUsage{
		{ID: 3, Feed: domain.Reference{Kind: domain.RefID, ID: 4}, Quantity: 5, Description: "утром", FeedName: "Корм сухой"},
	})
	require.Len(t, feeds, 1)
	assert.Equal(t, "Корм сухой", feeds[0].Name)
}
