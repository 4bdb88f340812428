package fetch

const vaultFields = `
  address
  name
  symbol
  chainId
  inception
  curators { id name description website logoUrl }
  linkedAddresses
  state {
    totalAssetsUsd
    pricePerShare
    highWaterMark
    managementFee
    performanceFee
    safeAssetBalanceUsd
    pendingSettlementUsd
    maxCapacityUsd
    weeklyApr
    monthlyApr
    yearlyApr
    inceptionApr
    nativeYieldsApr
    airdropsApr
    incentivesApr
    integrationCount
    settlementCount
    avgSettlementIntervalHours
  }`

const vaultQuery = `query Vault($address: String!, $chainId: Int!) {
  vault(address: $address, chainId: $chainId) {` + vaultFields + `
  }
}`

const chainVaultsQuery = `query ChainVaults($chainId: Int!) {
  vaults(where: { chainId_eq: $chainId }, first: 1000) {
    items {` + vaultFields + `
    }
  }
}`

const curatorVaultsQuery = `query CuratorVaults($curatorId: String!) {
  vaults(where: { curatorIds_contains: [$curatorId] }, first: 1000) {
    items {` + vaultFields + `
    }
  }
}`

const priceHistoryQuery = `query PriceHistory($address: String!, $chainId: Int!) {
  priceHistory(vault: $address, chainId: $chainId, orderBy: timestamp_ASC) {
    items { timestamp pricePerShare }
  }
}`

const compositionQuery = `query Composition($address: String!, $chainId: Int!) {
  composition(address: $address, chainId: $chainId) {
    items { protocol valueUsd }
  }
}`

const batchVaultsQuery = `query BatchVaults($addresses: [String!]!, $chainId: Int!) {
  targets: vaults(where: { address_in: $addresses, chainId_eq: $chainId }) {
    items {` + vaultFields + `
      priceHistory(orderBy: timestamp_ASC) { timestamp pricePerShare }
    }
  }
  all: vaults(where: { chainId_eq: $chainId }, first: 1000) {
    items {` + vaultFields + `
    }
  }
}`
