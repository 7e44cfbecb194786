package outbox

const assetStateChangedSchema = `{
  "type": "object",
  "title": "AssetStateChanged",
  "properties": {
    "asset_id": {"type": "string"},
    "tag": {"type": "string"},
    "status": {"type": "string"},
    "assignee_id": {"type": "string"},
    "knox_id": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["asset_id", "tag", "status", "occurred_at"],
  "additionalProperties": false
}`

const activityRecordedSchema = `{
  "type": "object",
  "title": "ActivityRecorded",
  "properties": {
    "action": {"type": "string"},
    "entity_type": {"type": "string"},
    "entity_id": {"type": "string"},
    "actor_id": {"type": "string"},
    "note": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["action", "entity_type", "entity_id", "note", "occurred_at"],
  "additionalProperties": false
}`
