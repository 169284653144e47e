package sqlinline

const QCreateAssetSchema = `--sql 3c1f7d2e-5b8a-4e61-9a0d-2f4c6b7e8a91
create table if not exists generated_assets (
  id          text primary key,
  type        text not null,
  status      text not null,
  task_id     text not null default '',
  created_at  bigint not null,
  payload     jsonb not null,
  updated_at  timestamptz not null default now()
);
create index if not exists generated_assets_pending_idx
  on generated_assets(status)
  where status in ('loading', 'queued', 'processing');
create table if not exists studio_settings (
  key         text primary key,
  value       text not null,
  updated_at  timestamptz not null default now()
);
`

const QUpsertAsset = `--sql 8d2b6a41-0f3e-4c7a-b5d9-61e2a4c8f037
insert into generated_assets (id, type, status, task_id, created_at, payload)
values ($1, $2, $3, $4, $5, $6::jsonb)
on conflict (id) do update
set type = excluded.type,
    status = excluded.status,
    task_id = excluded.task_id,
    payload = excluded.payload,
    updated_at = now();
`

const QSelectAssets = `--sql 0b7e5c93-1a2d-4f86-8e4b-9c3d5f7a1e26
select payload
from generated_assets;
`

const QSelectAssetPayload = `--sql 5a9c1e27-3d4b-4b8f-a6e0-7f2d9b1c3e54
select payload
from generated_assets
where id = $1
limit 1;
`

const QDeleteAsset = `--sql e4f6a8b2-7c1d-4e3f-9b5a-2d8c6e0f1a73
delete from generated_assets
where id = $1;
`

const QSelectSetting = `--sql 9f3a7b1c-2e4d-4a6f-8b0c-5d7e9f1a3b62
select value
from studio_settings
where key = $1
limit 1;
`

const QUpsertSetting = `--sql 1e5d3c7a-9b2f-4d8e-a4c6-0f7b9d1e3a85
insert into studio_settings (key, value)
values ($1, $2)
on conflict (key) do update
set value = excluded.value,
    updated_at = now();
`
