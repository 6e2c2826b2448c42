package realtime

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/HaiBangi/yumiso-sub003/internal/models"
)

// 事件类型。
const (
	TypeConnected     = "connected"
	TypeInitial       = "initial"
	TypeItemAdded     = "item_added"
	TypeItemRemoved   = "item_removed"
	TypeItemChecked   = "item_checked"
	TypeListReset     = "list_reset"
	TypeListGenerated = "list_generated"
)

// Heartbeat 是保持连接的注释帧。
const Heartbeat = ": heartbeat\n\n"

const (
	framePrefix = "data: "
	frameSuffix = "\n\n"
)

// Actor 标识触发变更的用户。
type Actor struct {
	ID   int64
	Name string
}

// Event 描述 SSE 推送时的消息载荷。
type Event struct {
	Type           string      `json:"type"`
	ListID         int64       `json:"listId,omitempty"`
	Items          interface{} `json:"items,omitempty"`
	IngredientName string      `json:"ingredientName,omitempty"`
	Category       string      `json:"category,omitempty"`
	Checked        *bool       `json:"checked,omitempty"`
	Count          *int        `json:"count,omitempty"`
	UserID         int64       `json:"userId,omitempty"`
	UserName       string      `json:"userName,omitempty"`
	Timestamp      int64       `json:"timestamp"`
}

// Connected 是新订阅者收到的第一条确认事件。
func Connected(listID int64) Event {
	return Event{Type: TypeConnected, ListID: listID}
}

// Initial 携带购物清单的完整快照。
func Initial(items []models.ShoppingItem) Event {
	if items == nil {
		items = []models.ShoppingItem{}
	}
	return Event{Type: TypeInitial, Items: items}
}

// ItemAdded 表示新增了一项。
func ItemAdded(actor Actor, item models.ShoppingItem) Event {
	return itemEvent(TypeItemAdded, actor, item)
}

// ItemRemoved 表示删除了一项。
func ItemRemoved(actor Actor, item models.ShoppingItem) Event {
	return itemEvent(TypeItemRemoved, actor, item)
}

// ItemChecked 表示某项的勾选状态发生变化。
func ItemChecked(actor Actor, item models.ShoppingItem) Event {
	evt := itemEvent(TypeItemChecked, actor, item)
	checked := item.Checked
	evt.Checked = &checked
	return evt
}

// ListReset 表示清单被整体清空。
func ListReset(actor Actor) Event {
	return Event{Type: TypeListReset, UserID: actor.ID, UserName: actor.Name}
}

// ListGenerated 表示清单根据计划重新生成。
func ListGenerated(actor Actor, count int) Event {
	return Event{Type: TypeListGenerated, Count: &count, UserID: actor.ID, UserName: actor.Name}
}

func itemEvent(kind string, actor Actor, item models.ShoppingItem) Event {
	return Event{
		Type:           kind,
		IngredientName: item.IngredientName,
		Category:       item.Category,
		UserID:         actor.ID,
		UserName:       actor.Name,
	}
}

// Encode 把事件编码为一帧 SSE 文本，缺省时间戳取当前毫秒。
func Encode(evt Event) (string, error) {
	if evt.Timestamp == 0 {
		evt.Timestamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return "", fmt.Errorf("encode %s event: %w", evt.Type, err)
	}
	return framePrefix + string(data) + frameSuffix, nil
}

// Payload 从 SSE 帧中取出 JSON 载荷，注释帧返回空串。
func Payload(frame string) string {
	if !strings.HasPrefix(frame, framePrefix) {
		return ""
	}
	return strings.TrimSuffix(strings.TrimPrefix(frame, framePrefix), frameSuffix)
}
