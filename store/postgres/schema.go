package postgres

// Schema is the reference DDL for the tenauth tables. Apply it with your
// migration tool of choice; the store never runs it implicitly.
const Schema = `
create table if not exists users (
	id                 uuid primary key,
	email              text not null unique,
	password_hash      text not null,
	first_name         text not null default '',
	last_name          text not null default '',
	email_verified     boolean not null default false,
	active             boolean not null default true,
	failed_login_count integer not null default 0,
	locked_until       timestamptz,
	created_at         timestamptz not null,
	last_login_at      timestamptz
);

create table if not exists refresh_tokens (
	id         uuid primary key,
	user_id    uuid not null references users(id) on delete cascade,
	token_hash text not null unique,
	expires_at timestamptz not null,
	revoked_at timestamptz,
	created_at timestamptz not null,
	ip         text not null default '',
	user_agent text not null default ''
);
create index if not exists refresh_tokens_user_idx on refresh_tokens(user_id) where revoked_at is null;

create table if not exists action_tokens (
	id         uuid primary key,
	user_id    uuid not null references users(id) on delete cascade,
	kind       text not null,
	token_hash text not null,
	expires_at timestamptz not null,
	used_at    timestamptz,
	created_at timestamptz not null,
	unique (kind, token_hash)
);

create table if not exists organizations (
	id         uuid primary key,
	name       text not null,
	slug       text not null unique,
	active     boolean not null default true,
	created_at timestamptz not null
);

create table if not exists roles (
	id        uuid primary key,
	org_id    uuid not null references organizations(id) on delete cascade,
	name      text not null,
	rank      integer not null,
	is_system boolean not null default false,
	unique (org_id, name)
);

create table if not exists role_permissions (
	role_id uuid not null references roles(id) on delete cascade,
	code    text not null,
	primary key (role_id, code)
);

create table if not exists memberships (
	id         uuid primary key,
	user_id    uuid not null references users(id) on delete cascade,
	org_id     uuid not null references organizations(id) on delete cascade,
	role_id    uuid not null references roles(id),
	active     boolean not null default true,
	is_owner   boolean not null default false,
	created_at timestamptz not null
);
create unique index if not exists memberships_active_pair_idx
	on memberships(user_id, org_id) where active;

create table if not exists invitations (
	id          uuid primary key,
	org_id      uuid not null references organizations(id) on delete cascade,
	email       text not null,
	role_id     uuid not null references roles(id),
	token_hash  text not null unique,
	invited_by  uuid not null references users(id),
	expires_at  timestamptz not null,
	accepted_at timestamptz,
	created_at  timestamptz not null
);
create index if not exists invitations_pending_idx
	on invitations(org_id, email) where accepted_at is null;
`
