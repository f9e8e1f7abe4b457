package sqlinline

const QInsertGeneration = `--sql 3f6c2b0e-9d41-4c57-a8e2-5b7f10c4d9a6
insert into generations (
    id,
    user_id,
    kind,
    prompt,
    provider,
    status,
    cost,
    url,
    storage_key,
    attempted_providers,
    failure_kind,
    error_message,
    country,
    options
)
values (
    $1::uuid,
    $2::text,
    $3::text,
    $4::text,
    $5::text,
    $6::text,
    $7::numeric,
    $8::text,
    $9::text,
    coalesce($10::jsonb, '[]'::jsonb),
    $11::text,
    $12::text,
    $13::text,
    coalesce($14::jsonb, '{}'::jsonb)
)
returning created_at;
`

const generationColumns = `
    id::text,
    user_id,
    kind,
    prompt,
    provider,
    status,
    cost::float8,
    url,
    storage_key,
    attempted_providers,
    failure_kind,
    error_message,
    country,
    options,
    created_at
`

const QSelectGenerationByID = `--sql 7b1e9a44-2c6d-4f0a-b3e8-91d5c6a70f12
select` + generationColumns + `from generations
where id = $1::uuid;
`

const QListRecentGenerations = `--sql c4a8d2f1-6e3b-4b97-9f05-2d7e8a1b3c64
select` + generationColumns + `from generations
where ($1::text = '' or user_id = $1::text)
order by created_at desc
limit $2::int;
`

const QEnsureSchema = `--sql 5e9d7c3a-1b8f-4a26-8c4d-e6f02a9b7d15
create table if not exists generations (
    id uuid primary key,
    user_id text not null default '',
    kind text not null,
    prompt text not null,
    provider text not null default '',
    status text not null,
    cost numeric(10, 4) not null default 0,
    url text not null default '',
    storage_key text not null default '',
    attempted_providers jsonb not null default '[]'::jsonb,
    failure_kind text not null default '',
    error_message text not null default '',
    country text not null default '',
    options jsonb not null default '{}'::jsonb,
    created_at timestamptz not null default now()
);
create index if not exists generations_user_created_idx on generations (user_id, created_at desc);
create table if not exists provider_credentials (
    provider text primary key,
    api_key text not null,
    properties jsonb not null default '{}'::jsonb,
    updated_at timestamptz not null default now()
);
`
