package resolver

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"vetdesk-workflow/internal/domain"
)

// LoadingLabel 名称尚未解析完成时的占位文本
const LoadingLabel = "Загрузка..."

// Backend 解析器需要的后端能力（api.Client 满足该接口，测试中用 fake 替换）
type Backend interface {
	GetJSON(ctx context.Context, path string, query url.Values, out any) error
}

// OnResolve 名称解析完成后的回调（用于界面重绘），可为 nil
type OnResolve func(kind domain.EntityKind, id int64, name string)

// entityPaths 各实体类型的详情端点
var entityPaths = map[domain.EntityKind]string{
	domain.KindPet:      "pets/%d/",
	domain.KindSchedule: "schedules/%d/",
	domain.KindService:  "services/%d/",
	domain.KindMedicine: "medicines/%d/",
	domain.KindFeed:     "feeds/%d/",
	domain.KindDoctor:   "doctors/%d/",
	domain.KindClient:   "clients/%d/",
}

type nameKey struct {
	kind domain.EntityKind
	id   int64
}

// Resolver 实体名称解析器
// 生命周期与所属面板一致：缓存只活在进程内，不跨会话持久化
//
// 解析顺序：内嵌名称字段 > 已解析缓存 > 发起一次拉取（同一 (kind,id)
// 最多一个在途请求）。等待期间返回确定性的占位标签而不阻塞调用方；
// 拉取失败时把兜底标签写入缓存，后续渲染不再重复触发请求
type Resolver struct {
	backend   Backend
	logger    *zap.Logger
	onResolve OnResolve

	mu           sync.Mutex
	names        map[nameKey]string
	pending      map[nameKey]struct{}
	schedulePets map[int64]domain.Reference // schedule_id -> 派生的宠物引用
	schedulePend map[int64]struct{}

	wg sync.WaitGroup
}

// NewResolver 创建名称解析器
func NewResolver(backend Backend, logger *zap.Logger, onResolve OnResolve) *Resolver {
	return &Resolver{
		backend:      backend,
		logger:       logger,
		onResolve:    onResolve,
		names:        make(map[nameKey]string),
		pending:      make(map[nameKey]struct{}),
		schedulePets: make(map[int64]domain.Reference),
		schedulePend: make(map[int64]struct{}),
	}
}

// Resolve 按 (kind, id) 解析显示名称，非阻塞
// 命中缓存时返回名称；未命中时触发后台拉取并立即返回占位标签
func (r *Resolver) Resolve(kind domain.EntityKind, id int64) string {
	if id <= 0 {
		return ""
	}

	key := nameKey{kind: kind, id: id}

	r.mu.Lock()
	if name, ok := r.names[key]; ok {
		r.mu.Unlock()
		return name
	}
	if _, inFlight := r.pending[key]; inFlight {
		r.mu.Unlock()
		return kind.FallbackLabel(id)
	}
	r.pending[key] = struct{}{}
	r.mu.Unlock()

	r.wg.Add(1)
	go r.fetchName(key)

	return kind.FallbackLabel(id)
}

// ResolveReference 解析引用的显示名称
// 内嵌对象已带名称时短路返回，不发任何请求
func (r *Resolver) ResolveReference(kind domain.EntityKind, ref domain.Reference) string {
	if !ref.Present() {
		return ""
	}
	if name, ok := ref.EmbeddedName(); ok {
		return name
	}
	return r.Resolve(kind, ref.ID)
}

// ResolveTaskPet 解析任务关联宠物的显示名称
// 没有直接宠物引用时经由任务的排期间接解析（排期 -> 宠物）；
// 排期拉取同样按 schedule_id 去重
func (r *Resolver) ResolveTaskPet(task *domain.Task) string {
	if ref := task.PetRef(); ref.Present() {
		return r.ResolveReference(domain.KindPet, ref)
	}

	if !task.Schedule.Present() {
		return ""
	}
	scheduleID := task.Schedule.ID
	if scheduleID <= 0 {
		return ""
	}

	r.mu.Lock()
	if petRef, ok := r.schedulePets[scheduleID]; ok {
		r.mu.Unlock()
		if !petRef.Present() {
			// 排期已拉取过但没有宠物信息
			return domain.KindSchedule.FallbackLabel(scheduleID)
		}
		return r.ResolveReference(domain.KindPet, petRef)
	}
	if _, inFlight := r.schedulePend[scheduleID]; inFlight {
		r.mu.Unlock()
		return LoadingLabel
	}
	r.schedulePend[scheduleID] = struct{}{}
	r.mu.Unlock()

	r.wg.Add(1)
	go r.fetchSchedulePet(scheduleID)

	return LoadingLabel
}

// Invalidate 丢弃某个已解析名称（实体被编辑后调用）
func (r *Resolver) Invalidate(kind domain.EntityKind, id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.names, nameKey{kind: kind, id: id})
}

// Flush 清空全部缓存（切换会话时调用），在途拉取的结果照常落进新缓存
func (r *Resolver) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = make(map[nameKey]string)
	r.schedulePets = make(map[int64]domain.Reference)
}

// Wait 等待所有在途拉取结束（CLI 输出前和测试中使用）
func (r *Resolver) Wait() {
	r.wg.Wait()
}

// fetchName 拉取实体详情并缓存名称，失败时缓存兜底标签
func (r *Resolver) fetchName(key nameKey) {
	defer r.wg.Done()

	name := key.kind.FallbackLabel(key.id)
	defer func() {
		r.mu.Lock()
		r.names[key] = name
		delete(r.pending, key)
		r.mu.Unlock()

		if r.onResolve != nil {
			r.onResolve(key.kind, key.id, name)
		}
	}()

	pathPattern, ok := entityPaths[key.kind]
	if !ok {
		r.logger.Warn("No detail endpoint for entity kind, using fallback label",
			zap.String("kind", string(key.kind)),
			zap.Int64("id", key.id),
		)
		return
	}

	// 拉取可能比触发它的那次渲染活得久，用解析器自身的生命周期作为上下文
	var fields map[string]any
	err := r.backend.GetJSON(context.Background(), fmt.Sprintf(pathPattern, key.id), nil, &fields)
	if err != nil {
		r.logger.Warn("Failed to fetch entity for name resolution, caching fallback label",
			zap.Error(err),
			zap.String("kind", string(key.kind)),
			zap.Int64("id", key.id),
		)
		return
	}

	if extracted, ok := domain.ExtractName(fields); ok {
		name = extracted
	}
}

// fetchSchedulePet 拉取排期并缓存派生的宠物引用，随后串联解析宠物名称
func (r *Resolver) fetchSchedulePet(scheduleID int64) {
	defer r.wg.Done()

	petRef := domain.Reference{}
	defer func() {
		r.mu.Lock()
		r.schedulePets[scheduleID] = petRef
		delete(r.schedulePend, scheduleID)
		r.mu.Unlock()

		// 串联：拿到宠物 ID 后继续解析宠物名称
		if petRef.Present() {
			if _, hasName := petRef.EmbeddedName(); !hasName {
				r.Resolve(domain.KindPet, petRef.ID)
			} else if r.onResolve != nil {
				name, _ := petRef.EmbeddedName()
				r.onResolve(domain.KindPet, petRef.ID, name)
			}
		}
	}()

	var schedule domain.Schedule
	err := r.backend.GetJSON(context.Background(), fmt.Sprintf("schedules/%d/", scheduleID), nil, &schedule)
	if err != nil {
		r.logger.Warn("Failed to fetch schedule for pet resolution",
			zap.Error(err),
			zap.Int64("schedule_id", scheduleID),
		)
		return
	}

	petRef = schedule.PetRef()

	// 内嵌名称直接进名称缓存，省一次宠物详情请求
	if name, ok := petRef.EmbeddedName(); ok && petRef.ID > 0 {
		r.mu.Lock()
		r.names[nameKey{kind: domain.KindPet, id: petRef.ID}] = name
		r.mu.Unlock()
	}
}
