package driver

// All queries are parameterized; no user-controlled text is ever formatted
// into a query string.

const (
	// SaveUserMessageQuery appends one user-authored message to a chat in a
	// single atomic write: calendar spine, message node, author/chat/day
	// edges, and the LAST_EVENT pointer rewrite with the NEXT chain link.
	// An absent valid_to means the fact is current.
	SaveUserMessageQuery = `
		MERGE (u:User {user_id: $author_id})
		ON CREATE SET u.id = 'user_' + toString($author_id), u.name = $author_name, u.valid_from = $now
		ON MATCH SET u.name = $author_name

		MERGE (c:Chat {chat_id: $chat_id})
		ON CREATE SET c.id = 'chat_' + toString($chat_id), c.name = 'Chat ' + toString($chat_id), c.valid_from = $now

		MERGE (d:Day {date: $day})
		ON CREATE SET d.id = $day_id, d.name = $day_name
		MERGE (y:Year {value: $year})
		MERGE (y)-[:MONTH {number: $month}]->(d)

		CREATE (m:Event:Message {
			uid: $uid,
			message_id: $message_id,
			text: $text,
			created_at: $created_at,
			name: $node_name,
			valid_from: $now
		})

		CREATE (u)-[:AUTHORED]->(m)
		CREATE (m)-[:HAPPENED_IN]->(c)
		CREATE (m)-[:HAPPENED_AT {time: $time}]->(d)

		WITH c, m
		OPTIONAL MATCH (c)-[last:LAST_EVENT]->(prev)
		DELETE last
		WITH c, m, prev
		FOREACH (_ IN CASE WHEN prev IS NOT NULL THEN [1] ELSE [] END |
			CREATE (prev)-[:NEXT]->(m)
		)
		CREATE (c)-[:LAST_EVENT]->(m)
		RETURN m.uid AS uid
	`

	// SaveAgentResponseQuery is the GENERATED twin of SaveUserMessageQuery.
	SaveAgentResponseQuery = `
		MERGE (a:Agent {user_id: $author_id})
		ON CREATE SET a.id = 'agent_' + toString($author_id), a.name = $author_name, a.valid_from = $now

		MERGE (c:Chat {chat_id: $chat_id})
		ON CREATE SET c.id = 'chat_' + toString($chat_id), c.name = 'Chat ' + toString($chat_id), c.valid_from = $now

		MERGE (d:Day {date: $day})
		ON CREATE SET d.id = $day_id, d.name = $day_name
		MERGE (y:Year {value: $year})
		MERGE (y)-[:MONTH {number: $month}]->(d)

		CREATE (m:Event:Message {
			uid: $uid,
			message_id: $message_id,
			text: $text,
			created_at: $created_at,
			name: $node_name,
			valid_from: $now
		})

		CREATE (a)-[:GENERATED]->(m)
		CREATE (m)-[:HAPPENED_IN]->(c)
		CREATE (m)-[:HAPPENED_AT {time: $time}]->(d)

		WITH c, m
		OPTIONAL MATCH (c)-[last:LAST_EVENT]->(prev)
		DELETE last
		WITH c, m, prev
		FOREACH (_ IN CASE WHEN prev IS NOT NULL THEN [1] ELSE [] END |
			CREATE (prev)-[:NEXT]->(m)
		)
		CREATE (c)-[:LAST_EVENT]->(m)
		RETURN m.uid AS uid
	`

	// CountAuthorMessagesQuery feeds the per-author, per-day message naming
	// sequence.
	CountAuthorMessagesQuery = `
		MATCH (d:Day {date: $day})
		MATCH (m:Message)-[:HAPPENED_AT]->(d)
		MATCH (author)-[:AUTHORED|GENERATED]->(m)
		WHERE author.user_id = $author_id
		RETURN count(m) AS n
	`

	GetChatContextQuery = `
		MATCH (m:Message)-[:HAPPENED_IN]->(c:Chat {chat_id: $chat_id})
		MATCH (author)-[:AUTHORED|GENERATED]->(m)
		OPTIONAL MATCH (m)-[h:HAPPENED_AT]->(:Day)
		RETURN author.name AS author, m.text AS text, h.time AS time, m.created_at AS ts
		ORDER BY m.created_at DESC
		LIMIT $limit
	`

	LogSystemEventQuery = `
		CREATE (e:SystemEvent {
			id: $id,
			type: $type,
			source: $source,
			severity: $severity,
			details: $details,
			created_at: $created_at,
			valid_from: $created_at
		})
		RETURN e.id AS id
	`

	LogSystemEventWithChatQuery = `
		CREATE (e:SystemEvent {
			id: $id,
			type: $type,
			source: $source,
			severity: $severity,
			details: $details,
			created_at: $created_at,
			valid_from: $created_at
		})
		WITH e
		MATCH (c:Chat {chat_id: $chat_id})
		CREATE (e)-[:OCCURRED_IN]->(c)
		RETURN e.id AS id
	`

	RecentSystemEventsQuery = `
		MATCH (e:SystemEvent)
		RETURN e.id AS id, e.type AS type, e.source AS source,
		       e.severity AS severity, e.details AS details, e.created_at AS created_at
		ORDER BY e.created_at DESC
		LIMIT $limit
	`

	SaveNarrativeSnapshotQuery = `
		MATCH (m:Event:Message {uid: $event_uid})
		CREATE (s:Snapshot:Narrative {
			id: $id,
			content: $content,
			created_at: $created_at,
			valid_from: $created_at
		})
		CREATE (m)-[:TRIGGERED]->(s)
		RETURN s.id AS id
	`

	SaveAnalystSnapshotQuery = `
		MATCH (n:Snapshot:Narrative {id: $narrative_id})
		CREATE (a:Snapshot:Analyst {
			id: $id,
			analysis: $analysis,
			intent: $intent,
			tasks: $tasks,
			created_at: $created_at,
			valid_from: $created_at
		})
		CREATE (n)-[:LED_TO]->(a)
		RETURN a.id AS id
	`

	SaveCoordinatorSnapshotQuery = `
		MATCH (a:Snapshot:Analyst {id: $analyst_id})
		CREATE (co:Snapshot:Coordinator {
			id: $id,
			context: $context,
			tasks_executed: $tasks_executed,
			created_at: $created_at,
			valid_from: $created_at
		})
		CREATE (a)-[:LED_TO]->(co)
		RETURN co.id AS id
	`

	TodayNarrativeSnapshotsQuery = `
		MATCH (d:Day {date: $day})
		MATCH (m:Message)-[:HAPPENED_AT]->(d)
		MATCH (m)-[:TRIGGERED]->(s:Snapshot:Narrative)
		RETURN s.id AS id, s.content AS content, s.created_at AS created_at
		ORDER BY s.created_at ASC
	`

	TodayAnalystSnapshotsQuery = `
		MATCH (d:Day {date: $day})
		MATCH (m:Message)-[:HAPPENED_AT]->(d)
		MATCH (m)-[:TRIGGERED]->(:Snapshot:Narrative)-[:LED_TO]->(a:Snapshot:Analyst)
		RETURN a.id AS id, a.analysis AS analysis, a.intent AS intent, a.created_at AS created_at
		ORDER BY a.created_at ASC
	`

	ActiveTopicsQuery = `
		MATCH (t:Topic {status: 'active'})
		RETURN t.title AS title, t.description AS description
	`

	EntityTypesQuery = `
		MATCH (e:Entity)
		WHERE e.valid_to IS NULL
		RETURN DISTINCT e.type AS type
	`

	// MergeEntityMentionsQuery links a message to the entities it mentions.
	// Entities are versioned by name: the MERGE reopens or creates the
	// current version, never deletes an old one.
	MergeEntityMentionsQuery = `
		MATCH (m:Event:Message {uid: $uid})
		UNWIND $entities AS ent
		MERGE (e:Entity {name: ent.name})
		ON CREATE SET e.type = ent.type, e.valid_from = $now
		MERGE (m)-[r:MENTIONS]->(e)
		ON CREATE SET r.weight = ent.weight, r.valid_from = $now
		RETURN count(e) AS linked
	`

	LinkTopicsQuery = `
		MATCH (m:Event:Message {uid: $uid})
		UNWIND $topics AS topic
		MERGE (t:Topic {title: topic})
		ON CREATE SET t.status = 'active', t.valid_from = $now
		MERGE (m)-[:ABOUT {valid_from: $now}]->(t)
		RETURN count(t) AS linked
	`

	// CloseEntityQuery soft-deletes the current version of an entity by
	// closing its validity interval. Nothing is hard-deleted.
	CloseEntityQuery = `
		MATCH (e:Entity {name: $name})
		WHERE e.valid_to IS NULL
		SET e.valid_to = $now
		RETURN e.name AS name
	`

	SaveThinkerLogQuery = `
		CREATE (:LogEntry {
			timestamp: $timestamp,
			prompt: $prompt,
			response: $response,
			model: $model
		})
	`

	RecentThoughtsQuery = `
		MATCH (l:LogEntry)
		WHERE l.timestamp > $since
		RETURN l.response AS response
		ORDER BY l.timestamp DESC
		LIMIT $limit
	`

	WeeklySummariesQuery = `
		MATCH (d:Day)<-[:SUMMARIZES]-(s:DaySummary)
		RETURN s.content AS content
		ORDER BY d.date DESC
		LIMIT $limit
	`

	// Prompt-assembly traversal: Role -> Task -> Protocol -> Instruction -> Rule.
	RoleInfoQuery = `
		MATCH (r:Role {name: $role})
		RETURN r.name AS name, r.description AS description
	`

	RoleTasksQuery = `
		MATCH (:Role {name: $role})-[:RESPONSIBLE_FOR]->(t:Task)
		RETURN t.name AS name, t.description AS description
	`

	RoleInstructionsQuery = `
		MATCH (:Role {name: $role})-[:RESPONSIBLE_FOR]->(:Task)
			-[:FOLLOWS_PROTOCOL]->(:Protocol)
			-[:COMPOSED_OF]->(i:Instruction)
		RETURN i.name AS name, i.content AS content
	`

	RoleRulesQuery = `
		MATCH (:Role {name: $role})-[:RESPONSIBLE_FOR]->(:Task)
			-[:FOLLOWS_PROTOCOL]->(:Protocol)
			-[:COMPOSED_OF]->(:Instruction)
			-[:ENFORCES]->(r:Rule)
		RETURN r.name AS name, r.content AS content
	`
)
