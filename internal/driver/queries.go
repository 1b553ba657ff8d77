package driver

const (
	GetContactQuery = `
		MATCH (c:Contact {id: $id, tenant_id: $tenant_id})
		RETURN c.id AS id, c.tenant_id AS tenant_id, c.email AS email,
			c.name AS name, c.phone AS phone, c.company AS company,
			c.score AS score, c.metadata_json AS metadata_json,
			c.created_at AS created_at, c.updated_at AS updated_at,
			c.version AS version
	`

	LookupContactQuery = `
		MATCH (c:Contact {id: $id})
		RETURN c.id AS id, c.tenant_id AS tenant_id, c.email AS email,
			c.name AS name, c.phone AS phone, c.company AS company,
			c.score AS score, c.metadata_json AS metadata_json,
			c.created_at AS created_at, c.updated_at AS updated_at,
			c.version AS version
		LIMIT 1
	`

	ListContactsQuery = `
		MATCH (c:Contact {tenant_id: $tenant_id})
		WHERE $cursor = "" OR c.id > $cursor
		RETURN c.id AS id, c.tenant_id AS tenant_id, c.email AS email,
			c.name AS name, c.phone AS phone, c.company AS company,
			c.score AS score, c.metadata_json AS metadata_json,
			c.created_at AS created_at, c.updated_at AS updated_at,
			c.version AS version
		ORDER BY c.id
		LIMIT $limit
	`

	CreateContactQuery = `
		CREATE (c:Contact {id: $id, tenant_id: $tenant_id})
		SET c.email = $email,
			c.name = $name,
			c.phone = $phone,
			c.company = $company,
			c.score = $score,
			c.metadata_json = $metadata_json,
			c.created_at = $now,
			c.updated_at = $now,
			c.version = 1
		RETURN c.version AS version
	`

	UpdateContactQuery = `
		MATCH (c:Contact {id: $id, tenant_id: $tenant_id})
		WHERE c.version = $version
		SET c.email = $email,
			c.name = $name,
			c.phone = $phone,
			c.company = $company,
			c.score = $score,
			c.metadata_json = $metadata_json,
			c.updated_at = $now,
			c.version = c.version + 1
		RETURN c.version AS version
	`

	ContactVersionQuery = `
		MATCH (c:Contact {id: $id, tenant_id: $tenant_id})
		RETURN c.version AS version
	`

	DeleteContactQuery = `
		MATCH (c:Contact {id: $id, tenant_id: $tenant_id})
		WHERE c.version = $version
		DETACH DELETE c
		RETURN count(*) AS deleted
	`

	ListRelationshipsQuery = `
		MATCH (src)-[e {tenant_id: $tenant_id}]->(dst)
		WHERE src.id = $contact_id OR dst.id = $contact_id
		RETURN e.uuid AS id, type(e) AS type, src.id AS source_id, dst.id AS target_id,
			e.score AS score, e.factors_json AS factors_json,
			e.created_at AS created_at, e.updated_at AS updated_at
	`

	// RepointRelationshipQuery rewrites an edge's endpoints by recreating
	// it; the relationship type is interpolated from the closed set in the
	// model package, never from caller input.
	RepointRelationshipQuery = `
		MATCH ()-[e {uuid: $id, tenant_id: $tenant_id}]->()
		MATCH (ns {id: $new_source, tenant_id: $tenant_id})
		MATCH (nt {id: $new_target, tenant_id: $tenant_id})
		CREATE (ns)-[e2:%s]->(nt)
		SET e2 = properties(e)
		DELETE e
		RETURN e2.uuid AS id
	`

	DeleteRelationshipQuery = `
		MATCH ()-[e {uuid: $id, tenant_id: $tenant_id}]-()
		DELETE e
		RETURN count(*) AS deleted
	`

	UpsertSimilarityEdgeQuery = `
		MATCH (a:Contact {id: $a_id, tenant_id: $tenant_id})
		MATCH (b:Contact {id: $b_id, tenant_id: $tenant_id})
		MERGE (a)-[e:SIMILAR_TO]-(b)
		ON CREATE SET e.uuid = $uuid, e.tenant_id = $tenant_id, e.created_at = $now
		SET e.score = $score, e.factors_json = $factors_json, e.updated_at = $now
		RETURN e.uuid AS id, e.created_at AS created_at, e.updated_at AS updated_at
	`

	CountContactsQuery = `
		MATCH (c:Contact {tenant_id: $tenant_id})
		RETURN count(c) AS total
	`

	SimilarityLinkStatsQuery = `
		MATCH (:Contact {tenant_id: $tenant_id})-[e:SIMILAR_TO]->()
		RETURN count(e) AS links, coalesce(avg(e.score), 0.0) AS avg_score
	`

	LinkedContactsQuery = `
		MATCH (c:Contact {tenant_id: $tenant_id})-[:SIMILAR_TO]-()
		RETURN count(DISTINCT c) AS linked
	`
)
