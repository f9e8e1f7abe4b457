package sqlinline

const QSelectProviderCredential = `--sql 3b0c6f1e-52a4-4d6e-9f0b-7c2e18d4a951
select api_key
from provider_credentials
where provider = $1::text and api_key <> '';
`

const QUpsertProviderCredential = `--sql c41d9a27-8e3b-4f05-b6a2-0d5e7f19c384
insert into provider_credentials (provider, api_key, properties, updated_at)
values ($1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb), now())
on conflict (provider) do update set
    api_key = excluded.api_key,
    properties = provider_credentials.properties || excluded.properties,
    updated_at = now();
`

const QListProviderCredentials = `--sql 7e92b4d0-1a6c-4c38-a57f-e3b8d20c6f15
select provider, updated_at
from provider_credentials
order by provider;
`
