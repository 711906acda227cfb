package activity

import (
	"strconv"
	"strings"
	"time"
)

const (
	VerbGroupReconciled = "groups.reconciled"
	VerbGroupAborted    = "groups.reconcile.aborted"
	VerbEntrySkipped    = "groups.entry.skipped"

	ObjectTypeGroup = "groups.group"
	ObjectTypeEntry = "groups.entry"
)

// GroupContext identifies the group an event is about.
type GroupContext struct {
	Namespace   string
	Field       string
	Key         string
	Type        string
	ElementType string
	RenderState string
}

// SkipRecord is the activity view of one skipped id.
type SkipRecord struct {
	Index  int
	ID     string
	Reason string
	Error  string
}

// GroupEventInput carries the fields shared by group lifecycle events.
type GroupEventInput struct {
	ActorID    string
	UserID     string
	TenantID   string
	Channel    string
	Group      GroupContext
	Installed  []int
	Skipped    []SkipRecord
	Error      string
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildGroupReconciledEvent describes a committed reconciliation.
func BuildGroupReconciledEvent(input GroupEventInput) Event {
	metadata := groupMetadata(input)
	metadata["installed_ids"] = append([]int{}, input.Installed...)
	metadata["installed_count"] = len(input.Installed)
	metadata["skipped_count"] = len(input.Skipped)
	if len(input.Skipped) > 0 {
		metadata["skipped"] = skipMetadata(input.Skipped)
	}
	return buildEvent(VerbGroupReconciled, ObjectTypeGroup, groupObjectID(input.Group), metadata, input)
}

// BuildGroupAbortedEvent describes a reconciliation that left the slot
// untouched.
func BuildGroupAbortedEvent(input GroupEventInput) Event {
	metadata := groupMetadata(input)
	if input.Error != "" {
		metadata["error"] = input.Error
	}
	metadata["skipped_count"] = len(input.Skipped)
	return buildEvent(VerbGroupAborted, ObjectTypeGroup, groupObjectID(input.Group), metadata, input)
}

// BuildEntrySkippedEvent describes one id dropped during reconciliation.
func BuildEntrySkippedEvent(input GroupEventInput, skip SkipRecord) Event {
	metadata := groupMetadata(input)
	metadata["index"] = skip.Index
	metadata["id"] = skip.ID
	metadata["reason"] = skip.Reason
	if skip.Error != "" {
		metadata["error"] = skip.Error
	}
	objectID := groupObjectID(input.Group) + "#" + strconv.Itoa(skip.Index)
	return buildEvent(VerbEntrySkipped, ObjectTypeEntry, objectID, metadata, input)
}

func buildEvent(verb, objectType, objectID string, metadata map[string]any, input GroupEventInput) Event {
	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: objectType,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func groupMetadata(input GroupEventInput) map[string]any {
	metadata := cloneMap(input.Metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}
	group := input.Group
	setIfPresent(metadata, "namespace", group.Namespace)
	setIfPresent(metadata, "field", group.Field)
	setIfPresent(metadata, "key", group.Key)
	setIfPresent(metadata, "type", group.Type)
	setIfPresent(metadata, "element_type", group.ElementType)
	setIfPresent(metadata, "render_state", group.RenderState)
	return metadata
}

func skipMetadata(skipped []SkipRecord) []map[string]any {
	out := make([]map[string]any, 0, len(skipped))
	for _, skip := range skipped {
		entry := map[string]any{
			"index":  skip.Index,
			"id":     skip.ID,
			"reason": skip.Reason,
		}
		if skip.Error != "" {
			entry["error"] = skip.Error
		}
		out = append(out, entry)
	}
	return out
}

func groupObjectID(group GroupContext) string {
	if key := strings.TrimSpace(group.Key); key != "" {
		return key
	}
	if field := strings.TrimSpace(group.Field); field != "" {
		return field
	}
	return ObjectTypeGroup
}

func setIfPresent(metadata map[string]any, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		metadata[key] = value
	}
}
